// Package lattice provides the bounded 2-D occupancy grid and its
// neighborhood queries. Cells hold at most one occupant; boundary policy and
// distance metric are fixed at construction.
package lattice

import (
	"errors"
	"fmt"
)

// ErrOccupiedCell is returned by Place when the target cell already holds an
// occupant. It signals an invariant violation, not a condition to retry.
var ErrOccupiedCell = errors.New("lattice: cell already occupied")

// Point is a cell coordinate on the grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Metric selects how neighborhood distance is measured.
type Metric uint8

const (
	MetricChebyshev Metric = iota // Square neighborhoods (Moore)
	MetricEuclidean               // Circular neighborhoods
)

// Boundary selects how the grid edge behaves.
type Boundary uint8

const (
	BoundaryTorus   Boundary = iota // Wrap-around edges
	BoundaryBounded                 // Hard edges, neighborhoods clipped
)

// Occupant is anything that can be placed on the grid.
type Occupant interface {
	OccupantID() uint64
}

// Grid is a fixed-size lattice with at most one occupant per cell.
type Grid struct {
	Width    int
	Height   int
	Boundary Boundary
	Metric   Metric

	cells     []Occupant
	positions map[uint64]Point
}

// New creates an empty grid. Width and height must be positive.
func New(width, height int, boundary Boundary, metric Metric) *Grid {
	return &Grid{
		Width:     width,
		Height:    height,
		Boundary:  boundary,
		Metric:    metric,
		cells:     make([]Occupant, width*height),
		positions: make(map[uint64]Point),
	}
}

// Size returns the total number of cells.
func (g *Grid) Size() int {
	return g.Width * g.Height
}

// Occupied returns the number of non-empty cells.
func (g *Grid) Occupied() int {
	return len(g.positions)
}

// normalize applies the boundary policy to a raw coordinate. The second
// return is false when the coordinate falls outside a bounded grid.
func (g *Grid) normalize(x, y int) (Point, bool) {
	if g.Boundary == BoundaryTorus {
		x = ((x % g.Width) + g.Width) % g.Width
		y = ((y % g.Height) + g.Height) % g.Height
		return Point{X: x, Y: y}, true
	}
	if x < 0 || x >= g.Width || y < 0 || y >= g.Height {
		return Point{}, false
	}
	return Point{X: x, Y: y}, true
}

func (g *Grid) index(p Point) int {
	return p.Y*g.Width + p.X
}

// At returns the occupant of the given cell, or nil if empty or out of bounds.
func (g *Grid) At(p Point) Occupant {
	q, ok := g.normalize(p.X, p.Y)
	if !ok {
		return nil
	}
	return g.cells[g.index(q)]
}

// IsEmpty reports whether the cell is in bounds and unoccupied.
func (g *Grid) IsEmpty(p Point) bool {
	q, ok := g.normalize(p.X, p.Y)
	if !ok {
		return false
	}
	return g.cells[g.index(q)] == nil
}

// PositionOf returns the recorded position of an occupant by ID.
func (g *Grid) PositionOf(id uint64) (Point, bool) {
	p, ok := g.positions[id]
	return p, ok
}

// Place puts an occupant on an empty cell. Returns ErrOccupiedCell if the
// cell holds another occupant, or an error if the occupant is already placed
// or the cell is out of bounds.
func (g *Grid) Place(o Occupant, p Point) error {
	q, ok := g.normalize(p.X, p.Y)
	if !ok {
		return fmt.Errorf("lattice: place at %v: out of bounds", p)
	}
	if _, placed := g.positions[o.OccupantID()]; placed {
		return fmt.Errorf("lattice: occupant %d already placed", o.OccupantID())
	}
	i := g.index(q)
	if g.cells[i] != nil {
		return fmt.Errorf("lattice: place at %v: %w", q, ErrOccupiedCell)
	}
	g.cells[i] = o
	g.positions[o.OccupantID()] = q
	return nil
}

// Remove takes an occupant off the grid. Removing an absent occupant is a
// no-op.
func (g *Grid) Remove(o Occupant) {
	p, ok := g.positions[o.OccupantID()]
	if !ok {
		return
	}
	g.cells[g.index(p)] = nil
	delete(g.positions, o.OccupantID())
}

// Move relocates a placed occupant to an empty cell.
func (g *Grid) Move(o Occupant, p Point) error {
	q, ok := g.normalize(p.X, p.Y)
	if !ok {
		return fmt.Errorf("lattice: move to %v: out of bounds", p)
	}
	old, placed := g.positions[o.OccupantID()]
	if !placed {
		return fmt.Errorf("lattice: move: occupant %d not on grid", o.OccupantID())
	}
	if old == q {
		return nil
	}
	i := g.index(q)
	if g.cells[i] != nil {
		return fmt.Errorf("lattice: move to %v: %w", q, ErrOccupiedCell)
	}
	g.cells[g.index(old)] = nil
	g.cells[i] = o
	g.positions[o.OccupantID()] = q
	return nil
}

// inRadius reports whether the offset (dx, dy) lies within the metric radius.
func (g *Grid) inRadius(dx, dy, radius int) bool {
	if g.Metric == MetricEuclidean {
		return dx*dx+dy*dy <= radius*radius
	}
	return true // Chebyshev: the scan bounds already enforce max(|dx|,|dy|) <= radius
}

// Neighborhood returns all cells within the metric distance <= radius of p,
// excluding p itself, honoring the boundary policy. The order is a fixed
// row-major scan of offsets, so results are deterministic.
func (g *Grid) Neighborhood(p Point, radius int) []Point {
	if radius <= 0 {
		return nil
	}
	center, ok := g.normalize(p.X, p.Y)
	if !ok {
		return nil
	}

	// On a torus narrower than the scan window, distinct offsets wrap onto
	// the same cell; dedupe so each cell appears once.
	var seen map[Point]bool
	if g.Boundary == BoundaryTorus && (2*radius+1 > g.Width || 2*radius+1 > g.Height) {
		seen = make(map[Point]bool)
	}

	out := make([]Point, 0, (2*radius+1)*(2*radius+1)-1)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if !g.inRadius(dx, dy, radius) {
				continue
			}
			q, ok := g.normalize(p.X+dx, p.Y+dy)
			if !ok || q == center {
				continue
			}
			if seen != nil {
				if seen[q] {
					continue
				}
				seen[q] = true
			}
			out = append(out, q)
		}
	}
	return out
}

// EmptyNeighbors returns the unoccupied subset of Neighborhood(p, radius).
func (g *Grid) EmptyNeighbors(p Point, radius int) []Point {
	cells := g.Neighborhood(p, radius)
	out := cells[:0]
	for _, q := range cells {
		if g.cells[g.index(q)] == nil {
			out = append(out, q)
		}
	}
	return out
}

// NearestFree finds the closest empty cell to p in expanding Chebyshev rings,
// starting with p itself. Returns false if no free cell exists within
// maxRadius.
func (g *Grid) NearestFree(p Point, maxRadius int) (Point, bool) {
	if q, ok := g.normalize(p.X, p.Y); ok && g.cells[g.index(q)] == nil {
		return q, true
	}
	for r := 1; r <= maxRadius; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if max(abs(dx), abs(dy)) != r {
					continue // interior rings already scanned
				}
				q, ok := g.normalize(p.X+dx, p.Y+dy)
				if !ok {
					continue
				}
				if g.cells[g.index(q)] == nil {
					return q, true
				}
			}
		}
	}
	return Point{}, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
