// Package card holds the fixed bingo card catalog and the pure win-pattern
// validator. Nothing in this package is mutated after construction, so a
// Catalog can be shared across goroutines without locking.
package card

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Size is the width and height of a card grid.
	Size = 5
	// FreeCell is the value stored in the wildcard position.
	FreeCell = 0
	// FreeRow and FreeCol locate the wildcard position.
	FreeRow = 2
	FreeCol = 2
	// MaxNumber is the highest number that can be called.
	MaxNumber = 75
	// DefaultCount is the catalog size used when none is configured.
	DefaultCount = 100

	bandWidth = MaxNumber / Size
)

var (
	ErrUnknownCard   = errors.New("unknown card")
	ErrInvalidGrid   = errors.New("invalid card grid")
	ErrDuplicateCard = errors.New("duplicate card")
)

// Grid is a row-major 5x5 card layout.
type Grid [Size][Size]int

// Card is a catalog entry.
type Card struct {
	ID   int  `json:"id" yaml:"id"`
	Grid Grid `json:"grid" yaml:"grid"`
}

// Catalog is an immutable id -> card mapping.
type Catalog struct {
	cards []Card
	byID  map[int]Card
}

// NewCatalog validates cards and builds a catalog from them.
func NewCatalog(cards []Card) (*Catalog, error) {
	c := &Catalog{
		cards: make([]Card, 0, len(cards)),
		byID:  make(map[int]Card, len(cards)),
	}
	seen := make(map[string]int, len(cards))
	for _, cd := range cards {
		if cd.ID <= 0 {
			return nil, fmt.Errorf("card id %d: %w", cd.ID, ErrInvalidGrid)
		}
		if _, exists := c.byID[cd.ID]; exists {
			return nil, fmt.Errorf("card id %d repeated: %w", cd.ID, ErrDuplicateCard)
		}
		if err := ValidateGrid(cd.Grid); err != nil {
			return nil, fmt.Errorf("card %d: %w", cd.ID, err)
		}
		key := cd.Grid.key()
		if other, exists := seen[key]; exists {
			return nil, fmt.Errorf("card %d has the same grid as card %d: %w", cd.ID, other, ErrDuplicateCard)
		}
		seen[key] = cd.ID
		c.cards = append(c.cards, cd)
		c.byID[cd.ID] = cd
	}
	sort.Slice(c.cards, func(i, j int) bool { return c.cards[i].ID < c.cards[j].ID })
	return c, nil
}

// Generate builds n distinct cards from a fixed seed. The same seed always
// yields the same catalog.
func Generate(n int, seed uint64) (*Catalog, error) {
	if n <= 0 {
		return nil, fmt.Errorf("card count must be positive, got %d", n)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	cards := make([]Card, 0, n)
	seen := make(map[string]struct{}, n)
	for len(cards) < n {
		g := randomGrid(rng)
		key := g.key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cards = append(cards, Card{ID: len(cards) + 1, Grid: g})
	}
	return NewCatalog(cards)
}

func randomGrid(rng *rand.Rand) Grid {
	var g Grid
	for col := 0; col < Size; col++ {
		low := col*bandWidth + 1
		picks := rng.Perm(bandWidth)
		for row := 0; row < Size; row++ {
			g[row][col] = low + picks[row]
		}
	}
	g[FreeRow][FreeCol] = FreeCell
	return g
}

type catalogFile struct {
	Cards []Card `yaml:"cards"`
}

// LoadFile reads a YAML catalog of the form:
//
//	cards:
//	  - id: 1
//	    grid: [[1,16,31,46,61], ...]
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse card file: %w", err)
	}
	if len(f.Cards) == 0 {
		return nil, fmt.Errorf("card file %s has no cards", path)
	}
	return NewCatalog(f.Cards)
}

// ValidateGrid checks the letter-banded layout: the free cell in the centre,
// every other cell inside its column's band, no repeats.
func ValidateGrid(g Grid) error {
	used := make(map[int]struct{}, Size*Size)
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			v := g[row][col]
			if row == FreeRow && col == FreeCol {
				if v != FreeCell {
					return fmt.Errorf("centre cell must be free, got %d: %w", v, ErrInvalidGrid)
				}
				continue
			}
			low, high := col*bandWidth+1, (col+1)*bandWidth
			if v < low || v > high {
				return fmt.Errorf("cell (%d,%d)=%d outside %d-%d: %w", row, col, v, low, high, ErrInvalidGrid)
			}
			if _, dup := used[v]; dup {
				return fmt.Errorf("number %d repeated: %w", v, ErrInvalidGrid)
			}
			used[v] = struct{}{}
		}
	}
	return nil
}

// Get returns the card with the given id.
func (c *Catalog) Get(id int) (Card, error) {
	cd, ok := c.byID[id]
	if !ok {
		return Card{}, fmt.Errorf("card %d: %w", id, ErrUnknownCard)
	}
	return cd, nil
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// Len is the number of cards.
func (c *Catalog) Len() int {
	return len(c.cards)
}

// Cards returns a copy of every card ordered by id.
func (c *Catalog) Cards() []Card {
	out := make([]Card, len(c.cards))
	copy(out, c.cards)
	return out
}

func (g Grid) key() string {
	var b strings.Builder
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			b.WriteString(strconv.Itoa(g[row][col]))
			b.WriteByte(',')
		}
	}
	return b.String()
}
