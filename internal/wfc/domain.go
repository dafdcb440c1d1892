package wfc

import "strconv"

// Domain is the set of symbols still possible for one grid cell.
// It only ever shrinks; a prune that would empty it fails with
// ErrContradiction and leaves the domain as it was.
type Domain struct {
	symbols SymbolSet
}

// NewDomain creates a domain holding a copy of symbols
func NewDomain(symbols SymbolSet) *Domain {
	return &Domain{symbols: symbols.Clone()}
}

// Len returns the number of remaining candidates
func (d *Domain) Len() int {
	return len(d.symbols)
}

// IsSolved returns true when exactly one candidate remains
func (d *Domain) IsSolved() bool {
	return len(d.symbols) == 1
}

// Symbol returns the resolved symbol, if any
func (d *Domain) Symbol() (Symbol, bool) {
	if !d.IsSolved() {
		return 0, false
	}
	return d.symbols[0], true
}

// Symbols returns a copy of the remaining candidates
func (d *Domain) Symbols() SymbolSet {
	return d.symbols.Clone()
}

// Contains returns true if sym is still a candidate
func (d *Domain) Contains(sym Symbol) bool {
	return d.symbols.Contains(sym)
}

// Prune intersects the domain with allowed.
func (d *Domain) Prune(allowed SymbolSet) error {
	next := d.symbols.Intersect(allowed)
	if len(next) == 0 {
		return ErrContradiction
	}
	d.symbols = next
	return nil
}

// PruneAgainst restricts the domain to symbols that some candidate of other
// allows in direction dir, where dir points from other towards d.
// It reports whether the domain shrank.
func (d *Domain) PruneAgainst(other *Domain, dir Direction, rules *Rules) (bool, error) {
	var allowed SymbolSet
	for _, sym := range other.symbols {
		neighbors := rules.adjacency[sym][dir]
		if len(neighbors) == 0 {
			// sym places no limit on this side, so neither does other
			return false, nil
		}
		allowed = allowed.Union(neighbors)
	}

	before := len(d.symbols)
	if err := d.Prune(allowed); err != nil {
		return false, err
	}
	return len(d.symbols) != before, nil
}

// assign collapses the domain to a single symbol
func (d *Domain) assign(sym Symbol) {
	d.symbols = SymbolSet{sym}
}

// String returns the resolved symbol, or the candidate count while unresolved
func (d *Domain) String() string {
	if sym, ok := d.Symbol(); ok {
		return sym.String()
	}
	return strconv.Itoa(len(d.symbols))
}
