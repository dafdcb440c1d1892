package wfc

import "fmt"

// Terrain symbols used by DefaultRules
const (
	SymbolEmpty     Symbol = ' '
	SymbolSlopeUp   Symbol = '/'
	SymbolSlopeDown Symbol = '\\'
	SymbolHillTop   Symbol = '_'
	SymbolHillRock  Symbol = '#'
	DefaultAlphabet        = " /\\_#"
	hillPieces             = "/\\_#"
)

// Rules is the adjacency table consulted by every Domain and Grid operation.
// It is filled in once through the Set* methods, checked with Validate, and
// must not be modified after it has been handed to a Grid.
type Rules struct {
	alphabet  SymbolSet
	adjacency map[Symbol]map[Direction]SymbolSet
	weights   map[Symbol]int
	edges     map[Direction]SymbolSet
}

// NewRules creates an empty table over the given alphabet.
// Every edge starts out allowing the whole alphabet.
func NewRules(alphabet string) *Rules {
	r := &Rules{
		alphabet:  NewSymbolSet(alphabet),
		adjacency: make(map[Symbol]map[Direction]SymbolSet),
		weights:   make(map[Symbol]int),
		edges:     make(map[Direction]SymbolSet),
	}
	for _, d := range AllDirections() {
		r.edges[d] = r.alphabet.Clone()
	}
	return r
}

// DefaultRules returns the hills-and-plains terrain table
func DefaultRules() *Rules {
	r := NewRules(DefaultAlphabet)

	r.SetWeight(SymbolEmpty, 1000)
	r.SetWeight(SymbolSlopeUp, 10)
	r.SetWeight(SymbolSlopeDown, 10)
	r.SetWeight(SymbolHillTop, 50)
	r.SetWeight(SymbolHillRock, 100)

	// Open sky
	r.setAll(SymbolEmpty, " /\\#", " /_", " /\\_", " \\_")

	// Rising slope
	r.setAll(SymbolSlopeUp, " \\", "#\\", " \\_#", " _")

	// Falling slope
	r.setAll(SymbolSlopeDown, " /", " _", " /_#", "/#")

	// Flat hill top, always sits on rock
	r.setAll(SymbolHillTop, " /\\#", " /_", "#", " \\_")

	// Hill body
	r.setAll(SymbolHillRock, hillPieces, "#\\", " _#", "/#")

	r.SetEdge(Top, " _")
	r.SetEdge(Right, " \\_#")
	r.SetEdge(Bottom, " /\\#")
	r.SetEdge(Left, " /_#")

	return r
}

// setAll sets the neighbor sets for all four directions in Top, Right, Bottom, Left order
func (r *Rules) setAll(sym Symbol, top, right, bottom, left string) {
	r.SetNeighbors(sym, Top, top)
	r.SetNeighbors(sym, Right, right)
	r.SetNeighbors(sym, Bottom, bottom)
	r.SetNeighbors(sym, Left, left)
}

// SetNeighbors sets which symbols may sit next to sym in the given direction
func (r *Rules) SetNeighbors(sym Symbol, dir Direction, allowed string) {
	if r.adjacency[sym] == nil {
		r.adjacency[sym] = make(map[Direction]SymbolSet, directionCount)
	}
	r.adjacency[sym][dir] = NewSymbolSet(allowed)
}

// SetWeight sets the relative selection weight of sym
func (r *Rules) SetWeight(sym Symbol, weight int) {
	r.weights[sym] = weight
}

// SetEdge sets the symbols allowed in cells touching the given border side
func (r *Rules) SetEdge(side Direction, allowed string) {
	r.edges[side] = NewSymbolSet(allowed)
}

// Validate checks that every symbol has a positive weight and a neighbor set
// for each direction, and that no rule mentions a symbol outside the alphabet.
func (r *Rules) Validate() error {
	if len(r.alphabet) == 0 {
		return fmt.Errorf("%w: empty alphabet", ErrInvalidRules)
	}
	for _, sym := range r.alphabet {
		if r.weights[sym] <= 0 {
			return fmt.Errorf("%w: symbol %q needs a positive weight", ErrInvalidRules, sym.String())
		}
		for _, dir := range AllDirections() {
			allowed, ok := r.adjacency[sym][dir]
			if !ok {
				return fmt.Errorf("%w: symbol %q has no %s neighbors", ErrInvalidRules, sym.String(), dir)
			}
			if err := r.checkKnown(allowed); err != nil {
				return fmt.Errorf("%w: %q %s neighbors: %v", ErrInvalidRules, sym.String(), dir, err)
			}
		}
	}
	for sym, sides := range r.adjacency {
		if !r.alphabet.Contains(sym) {
			return fmt.Errorf("%w: rule for %q: %w", ErrInvalidRules, sym.String(), ErrUnknownSymbol)
		}
		for dir := range sides {
			if !dir.Valid() {
				return fmt.Errorf("%w: rule for %q uses direction %d", ErrInvalidRules, sym.String(), int(dir))
			}
		}
	}
	for sym := range r.weights {
		if !r.alphabet.Contains(sym) {
			return fmt.Errorf("%w: weight for %q: %w", ErrInvalidRules, sym.String(), ErrUnknownSymbol)
		}
	}
	for _, side := range AllDirections() {
		if err := r.checkKnown(r.edges[side]); err != nil {
			return fmt.Errorf("%w: %s edge: %v", ErrInvalidRules, side, err)
		}
	}
	return nil
}

func (r *Rules) checkKnown(set SymbolSet) error {
	for _, c := range set {
		if !r.alphabet.Contains(c) {
			return fmt.Errorf("%w %q", ErrUnknownSymbol, c.String())
		}
	}
	return nil
}

// Alphabet returns every symbol the table knows, in declaration order
func (r *Rules) Alphabet() SymbolSet {
	return r.alphabet.Clone()
}

// CompatibleNeighbors returns the symbols allowed next to sym in direction dir.
// An empty result means sym contributes no restriction in that direction.
// The result is a copy and may be modified freely.
func (r *Rules) CompatibleNeighbors(sym Symbol, dir Direction) SymbolSet {
	return r.adjacency[sym][dir].Clone()
}

// Weight returns the selection weight of sym, or 0 if it is unknown
func (r *Rules) Weight(sym Symbol) int {
	return r.weights[sym]
}

// EdgeConstraint returns the symbols allowed on the given border side
func (r *Rules) EdgeConstraint(side Direction) SymbolSet {
	return r.edges[side].Clone()
}

// WeightedPick draws a symbol from d with probability proportional to its weight.
// Exactly one value is drawn from s per call.
func (r *Rules) WeightedPick(d *Domain, s *Sampler) (Symbol, error) {
	if d == nil || d.Len() == 0 {
		return 0, ErrEmptyDomain
	}

	var total int64
	for _, sym := range d.symbols {
		total += int64(r.weights[sym])
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: domain %q has no weight", ErrInvalidRules, d.symbols.String())
	}

	draw := s.Int63n(total)
	for _, sym := range d.symbols {
		w := int64(r.weights[sym])
		if draw < w {
			return sym, nil
		}
		draw -= w
	}

	// Unreachable while draw < total
	return 0, fmt.Errorf("wfc: weighted draw out of range for %q", d.symbols.String())
}
