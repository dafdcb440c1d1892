package wfc

import (
	"errors"
	"fmt"

	"github.com/zyedidia/generic/mapset"
	"github.com/zyedidia/generic/queue"
)

var (
	ErrContradiction = errors.New("wfc: contradiction - no valid symbols for cell")
	ErrInvalidSize   = errors.New("wfc: invalid grid size")
	ErrInvalidRules  = errors.New("wfc: invalid rule table")
	ErrEmptyDomain   = errors.New("wfc: weighted pick from empty domain")
	ErrUnknownSymbol = errors.New("wfc: unknown symbol")
	ErrOutOfBounds   = errors.New("wfc: cell index out of range")
	ErrNotSeeded     = errors.New("wfc: grid has no sampler, call Start first")
)

// ContradictionError reports the cell whose domain ran out of symbols
type ContradictionError struct {
	Index    int
	Row, Col int
	// Source is the neighbor being propagated from, or -1 when the
	// contradiction came from an edge constraint or a forced assignment.
	Source int
}

func (e *ContradictionError) Error() string {
	if e.Source < 0 {
		return fmt.Sprintf("wfc: contradiction at cell %d (row %d, col %d)", e.Index, e.Row, e.Col)
	}
	return fmt.Sprintf("wfc: contradiction at cell %d (row %d, col %d) propagating from cell %d",
		e.Index, e.Row, e.Col, e.Source)
}

// Unwrap lets errors.Is match ErrContradiction
func (e *ContradictionError) Unwrap() error {
	return ErrContradiction
}

// State is the lifecycle stage of a Grid
type State int

const (
	StateInProgress State = iota
	StateSolved
	StateContradicted
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in_progress"
	case StateSolved:
		return "solved"
	case StateContradicted:
		return "contradicted"
	default:
		return "unknown"
	}
}

// Neighbor is an adjacent cell and the direction leading to it
type Neighbor struct {
	Index     int
	Direction Direction
}

// CellState is the read-only view of one cell handed to renderers
type CellState struct {
	Index      int
	Row, Col   int
	Solved     bool
	Symbol     Symbol // valid only when Solved
	Candidates int
}

// String returns the symbol when solved, otherwise the candidate count
func (c CellState) String() string {
	if c.Solved {
		return c.Symbol.String()
	}
	return fmt.Sprintf("%d", c.Candidates)
}

// StepEvent describes one completed collapse step
type StepEvent struct {
	Step     int
	Index    int
	Row, Col int
	Symbol   Symbol
}

// Grid is a fixed-size board of cell domains and the collapse engine that resolves them.
// A Grid is not safe for concurrent use.
type Grid struct {
	width, height int
	cells         []*Domain
	rules         *Rules
	sampler       *Sampler

	// next is the unresolved cell with the fewest candidates, -1 when none.
	// It is derived from cells and refreshed after every change.
	next int

	steps     int
	state     State
	failure   error
	observers []func(StepEvent)
}

// NewGrid creates a width x height grid whose cells start with the full
// alphabet of rules, narrowed by the edge constraints on border cells.
func NewGrid(width, height int, rules *Rules) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if rules == nil {
		return nil, fmt.Errorf("%w: nil rules", ErrInvalidRules)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	g := &Grid{
		width:  width,
		height: height,
		cells:  make([]*Domain, width*height),
		rules:  rules,
		next:   -1,
	}

	alphabet := rules.Alphabet()
	for i := range g.cells {
		g.cells[i] = NewDomain(alphabet)
	}

	if err := g.applyEdges(); err != nil {
		return nil, err
	}
	if err := g.findNext(); err != nil {
		return nil, err
	}

	return g, nil
}

// applyEdges prunes every border cell with the constraint of each side it touches
func (g *Grid) applyEdges() error {
	for i, cell := range g.cells {
		row, col := g.Coords(i)
		sides := make([]Direction, 0, 2)
		if row == 0 {
			sides = append(sides, Top)
		}
		if col == g.width-1 {
			sides = append(sides, Right)
		}
		if row == g.height-1 {
			sides = append(sides, Bottom)
		}
		if col == 0 {
			sides = append(sides, Left)
		}

		for _, side := range sides {
			if err := cell.Prune(g.rules.edges[side]); err != nil {
				return &ContradictionError{Index: i, Row: row, Col: col, Source: -1}
			}
		}
	}
	return nil
}

// OnStep registers fn to be called after every successful collapse step
func (g *Grid) OnStep(fn func(StepEvent)) {
	g.observers = append(g.observers, fn)
}

// Start seeds the run. All randomness of the run comes from this one stream.
func (g *Grid) Start(seed int64) {
	g.sampler = NewSampler(seed)
}

// Collapse seeds the run with seed and resolves cells until the grid is
// solved or a contradiction occurs. There is no backtracking: a returned
// error wrapping ErrContradiction ends the run.
func (g *Grid) Collapse(seed int64) error {
	g.Start(seed)
	for {
		more, err := g.Step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// Step resolves one cell: the unresolved cell with the fewest candidates
// (lowest index on ties) gets a weighted random symbol, the change is
// propagated, and the next target is recomputed. It returns true while
// unresolved cells remain.
func (g *Grid) Step() (bool, error) {
	switch g.state {
	case StateContradicted:
		return false, g.failure
	case StateSolved:
		return false, nil
	}
	if g.sampler == nil {
		return false, ErrNotSeeded
	}
	if g.next < 0 {
		g.state = StateSolved
		return false, nil
	}

	target := g.next
	sym, err := g.rules.WeightedPick(g.cells[target], g.sampler)
	if err != nil {
		return false, g.fail(err)
	}
	g.cells[target].assign(sym)
	g.steps++

	if err := g.Propagate(target); err != nil {
		return false, err
	}
	if err := g.findNext(); err != nil {
		return false, err
	}

	row, col := g.Coords(target)
	event := StepEvent{Step: g.steps, Index: target, Row: row, Col: col, Symbol: sym}
	for _, fn := range g.observers {
		fn(event)
	}

	return g.next >= 0, nil
}

// Assign forces the cell at index to sym and propagates the consequences
func (g *Grid) Assign(index int, sym Symbol) error {
	if index < 0 || index >= len(g.cells) {
		return fmt.Errorf("%w: %d", ErrOutOfBounds, index)
	}
	if g.state == StateContradicted {
		return g.failure
	}

	cell := g.cells[index]
	if !cell.Contains(sym) {
		row, col := g.Coords(index)
		return g.fail(&ContradictionError{Index: index, Row: row, Col: col, Source: -1})
	}
	cell.assign(sym)

	if err := g.Propagate(index); err != nil {
		return err
	}
	return g.findNext()
}

// Propagate runs one breadth-first pass from origin, narrowing every
// unresolved neighbor against the cell it was reached from. A neighbor
// whose domain shrank is queued so the change ripples outward. Each cell
// is expanded at most once per pass.
func (g *Grid) Propagate(origin int) error {
	if origin < 0 || origin >= len(g.cells) {
		return fmt.Errorf("%w: %d", ErrOutOfBounds, origin)
	}

	pending := queue.New[int]()
	visited := mapset.New[int]()
	pending.Enqueue(origin)

	for !pending.Empty() {
		current := pending.Dequeue()
		visited.Put(current)

		for _, n := range g.Neighbors(current) {
			neighbor := g.cells[n.Index]
			if neighbor.IsSolved() || visited.Has(n.Index) {
				continue
			}

			changed, err := neighbor.PruneAgainst(g.cells[current], n.Direction, g.rules)
			if err != nil {
				row, col := g.Coords(n.Index)
				return g.fail(&ContradictionError{Index: n.Index, Row: row, Col: col, Source: current})
			}
			if changed {
				pending.Enqueue(n.Index)
			}
		}
	}

	return nil
}

// findNext rescans every cell for the next collapse target
func (g *Grid) findNext() error {
	g.next = -1
	best := 0
	for i, cell := range g.cells {
		n := cell.Len()
		if n == 0 {
			row, col := g.Coords(i)
			return g.fail(&ContradictionError{Index: i, Row: row, Col: col, Source: -1})
		}
		if n > 1 && (g.next < 0 || n < best) {
			g.next = i
			best = n
		}
	}
	if g.next < 0 {
		g.state = StateSolved
	}
	return nil
}

func (g *Grid) fail(err error) error {
	g.state = StateContradicted
	g.failure = err
	g.next = -1
	return err
}

// Neighbors returns the in-bounds cells adjacent to index, in Top, Right,
// Bottom, Left order.
func (g *Grid) Neighbors(index int) []Neighbor {
	out := make([]Neighbor, 0, directionCount)
	if index >= g.width {
		out = append(out, Neighbor{Index: index - g.width, Direction: Top})
	}
	if index%g.width != g.width-1 {
		out = append(out, Neighbor{Index: index + 1, Direction: Right})
	}
	if index < (g.height-1)*g.width {
		out = append(out, Neighbor{Index: index + g.width, Direction: Bottom})
	}
	if index%g.width != 0 {
		out = append(out, Neighbor{Index: index - 1, Direction: Left})
	}
	return out
}

// Width returns the number of columns
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows
func (g *Grid) Height() int { return g.height }

// Len returns the number of cells
func (g *Grid) Len() int { return len(g.cells) }

// Rules returns the table the grid was built with
func (g *Grid) Rules() *Rules { return g.rules }

// Index converts a row and column to a flat index
func (g *Grid) Index(row, col int) int {
	return row*g.width + col
}

// Coords converts a flat index to a row and column
func (g *Grid) Coords(index int) (row, col int) {
	return index / g.width, index % g.width
}

// Next returns the index of the next collapse target, or -1 when none remains
func (g *Grid) Next() int { return g.next }

// Steps returns how many cells have been collapsed by Step
func (g *Grid) Steps() int { return g.steps }

// State returns the lifecycle stage of the grid
func (g *Grid) State() State { return g.state }

// Err returns the contradiction that ended the run, if any
func (g *Grid) Err() error { return g.failure }

// Seed returns the seed of the current run
func (g *Grid) Seed() (int64, bool) {
	if g.sampler == nil {
		return 0, false
	}
	return g.sampler.Seed(), true
}

// Candidates returns a copy of the remaining symbols of the cell at index
func (g *Grid) Candidates(index int) SymbolSet {
	return g.cells[index].Symbols()
}

// At returns the state of the cell at index
func (g *Grid) At(index int) CellState {
	cell := g.cells[index]
	row, col := g.Coords(index)
	cs := CellState{
		Index:      index,
		Row:        row,
		Col:        col,
		Candidates: cell.Len(),
	}
	if sym, ok := cell.Symbol(); ok {
		cs.Solved = true
		cs.Symbol = sym
	}
	return cs
}

// Cell returns the state of the cell at row, col
func (g *Grid) Cell(row, col int) CellState {
	return g.At(g.Index(row, col))
}

// Cells returns the state of every cell in row-major order
func (g *Grid) Cells() []CellState {
	out := make([]CellState, len(g.cells))
	for i := range g.cells {
		out[i] = g.At(i)
	}
	return out
}
