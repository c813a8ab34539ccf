package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasBingo_EmptyHistory(t *testing.T) {
	cat, err := Generate(DefaultCount, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, cd := range cat.Cards() {
		assert.False(t, HasBingo(cd.Grid, nil), "card %d", cd.ID)
		assert.Empty(t, WinningLines(cd.Grid, nil), "card %d", cd.ID)
	}
}

func TestHasBingo_RowCompletesOnLastNumber(t *testing.T) {
	g := testGrid()
	row := []int{5, 20, 35, 50, 65}

	var called []int
	for i, n := range row {
		assert.False(t, HasBingo(g, called), "won before number %d", i)
		called = append(called, n)
	}
	assert.True(t, HasBingo(g, called))

	lines := WinningLines(g, called)
	if assert.Len(t, lines, 1) {
		assert.Equal(t, LineRow, lines[0].Type)
		assert.Equal(t, 0, lines[0].Index)
		assert.Len(t, lines[0].Cells, Size)
	}
}

func TestHasBingo_Patterns(t *testing.T) {
	g := testGrid()
	tests := []struct {
		name   string
		called []int
		want   LineType
		index  int
	}{
		{"middle row uses free cell", []int{2, 17, 47, 62}, LineRow, 2},
		{"column", []int{50, 46, 47, 48, 49}, LineColumn, 3},
		{"middle column uses free cell", []int{35, 31, 33, 34}, LineColumn, 2},
		{"diagonal", []int{5, 16, 48, 64}, LineDiagonal, 0},
		{"anti diagonal", []int{65, 46, 18, 4}, LineDiagonal, 1},
		{"corners", []int{5, 65, 4, 64}, LineCorners, 0},
		{"cross", []int{31, 33, 17, 47}, LineCross, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, HasBingo(g, tt.called))
			lines := WinningLines(g, tt.called)
			if assert.Len(t, lines, 1) {
				assert.Equal(t, tt.want, lines[0].Type)
				assert.Equal(t, tt.index, lines[0].Index)
			}
			// one short never wins
			assert.False(t, HasBingo(g, tt.called[1:]))
		})
	}
}

func TestWinningLines_ReportsEverySatisfiedPattern(t *testing.T) {
	g := testGrid()
	// row 0 plus column 0 share the top-left corner
	called := []int{5, 20, 35, 50, 65, 1, 2, 3, 4, 64}
	lines := WinningLines(g, called)

	var types []LineType
	for _, l := range lines {
		types = append(types, l.Type)
	}
	// row 0, column 0 and the four corners
	assert.ElementsMatch(t, []LineType{LineRow, LineColumn, LineCorners}, types)
}

func TestHasBingo_Deterministic(t *testing.T) {
	g := testGrid()
	called := []int{31, 33, 17, 47, 9, 70}
	first := HasBingo(g, called)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, HasBingo(g, called))
	}
}

func TestHasBingo_ReplayMatchesLiveDetermination(t *testing.T) {
	g := testGrid()
	draws := []int{70, 31, 12, 33, 17, 44, 47, 5}
	var live []int
	liveWins := make([]bool, len(draws))
	for i, n := range draws {
		live = append(live, n)
		liveWins[i] = HasBingo(g, live)
	}

	// replay on a fresh history
	var replay []int
	for i, n := range draws {
		replay = append(replay, n)
		assert.Equal(t, liveWins[i], HasBingo(g, replay), "step %d", i)
	}
	assert.False(t, liveWins[5])
	assert.True(t, liveWins[6])
}

func TestPatterns_Count(t *testing.T) {
	// 5 rows, 5 columns, 2 diagonals, corners, cross
	assert.Len(t, Patterns(), 14)
}
