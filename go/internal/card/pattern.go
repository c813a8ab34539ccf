package card

// LineType names a winning pattern family.
type LineType string

const (
	LineRow      LineType = "row"
	LineColumn   LineType = "column"
	LineDiagonal LineType = "diagonal"
	LineCorners  LineType = "corners"
	LineCross    LineType = "cross"
)

// Cell is a grid coordinate.
type Cell struct {
	R int `json:"r"`
	C int `json:"c"`
}

// Line is one satisfiable pattern. Index distinguishes rows, columns and the
// two diagonals (0 is top-left to bottom-right); it is 0 for corners and cross.
type Line struct {
	Type  LineType `json:"type"`
	Index int      `json:"index"`
	Cells []Cell   `json:"cells"`
}

var patterns = buildPatterns()

func buildPatterns() []Line {
	var out []Line
	for r := 0; r < Size; r++ {
		l := Line{Type: LineRow, Index: r}
		for c := 0; c < Size; c++ {
			l.Cells = append(l.Cells, Cell{R: r, C: c})
		}
		out = append(out, l)
	}
	for c := 0; c < Size; c++ {
		l := Line{Type: LineColumn, Index: c}
		for r := 0; r < Size; r++ {
			l.Cells = append(l.Cells, Cell{R: r, C: c})
		}
		out = append(out, l)
	}
	down := Line{Type: LineDiagonal, Index: 0}
	anti := Line{Type: LineDiagonal, Index: 1}
	for i := 0; i < Size; i++ {
		down.Cells = append(down.Cells, Cell{R: i, C: i})
		anti.Cells = append(anti.Cells, Cell{R: i, C: Size - 1 - i})
	}
	out = append(out, down, anti)
	out = append(out, Line{Type: LineCorners, Cells: []Cell{
		{R: 0, C: 0}, {R: 0, C: Size - 1}, {R: Size - 1, C: 0}, {R: Size - 1, C: Size - 1},
	}})
	out = append(out, Line{Type: LineCross, Cells: []Cell{
		{R: FreeRow - 1, C: FreeCol}, {R: FreeRow + 1, C: FreeCol},
		{R: FreeRow, C: FreeCol - 1}, {R: FreeRow, C: FreeCol + 1},
	}})
	return out
}

// Marks is the set of called numbers.
type Marks map[int]struct{}

// NewMarks builds a set from a called-numbers history.
func NewMarks(called []int) Marks {
	m := make(Marks, len(called))
	for _, n := range called {
		m[n] = struct{}{}
	}
	return m
}

func (m Marks) marked(v int) bool {
	if v == FreeCell {
		return true
	}
	_, ok := m[v]
	return ok
}

func (m Marks) satisfies(g Grid, l Line) bool {
	for _, c := range l.Cells {
		if !m.marked(g[c.R][c.C]) {
			return false
		}
	}
	return true
}

// HasBingo reports whether any pattern on g is fully marked by called.
func HasBingo(g Grid, called []int) bool {
	m := NewMarks(called)
	for _, l := range patterns {
		if m.satisfies(g, l) {
			return true
		}
	}
	return false
}

// WinningLines lists every satisfied pattern, in a stable order.
func WinningLines(g Grid, called []int) []Line {
	m := NewMarks(called)
	var out []Line
	for _, l := range patterns {
		if m.satisfies(g, l) {
			cells := make([]Cell, len(l.Cells))
			copy(cells, l.Cells)
			out = append(out, Line{Type: l.Type, Index: l.Index, Cells: cells})
		}
	}
	return out
}

// Patterns returns every pattern the validator checks.
func Patterns() []Line {
	out := make([]Line, len(patterns))
	for i, l := range patterns {
		cells := make([]Cell, len(l.Cells))
		copy(cells, l.Cells)
		out[i] = Line{Type: l.Type, Index: l.Index, Cells: cells}
	}
	return out
}
