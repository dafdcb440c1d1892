package wfc

import "strings"

// Direction represents one side of a grid cell
type Direction int

const (
	Top Direction = iota
	Right
	Bottom
	Left
)

// directionCount is the number of sides a cell has
const directionCount = 4

// String returns the string representation of a Direction
func (d Direction) String() string {
	switch d {
	case Top:
		return "top"
	case Right:
		return "right"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	default:
		return "unknown"
	}
}

// Opposite returns the opposite direction
func (d Direction) Opposite() Direction {
	switch d {
	case Top:
		return Bottom
	case Right:
		return Left
	case Bottom:
		return Top
	case Left:
		return Right
	default:
		return d
	}
}

// Valid reports whether d is one of the four sides
func (d Direction) Valid() bool {
	return d >= Top && d <= Left
}

// AllDirections returns the four sides in neighbor visiting order
func AllDirections() []Direction {
	return []Direction{Top, Right, Bottom, Left}
}

// Symbol is a single terrain character
type Symbol rune

// String returns the symbol as a one-character string
func (s Symbol) String() string {
	return string(rune(s))
}

// SymbolSet is an ordered list of distinct symbols.
// Operations keep the receiver's order so iteration is deterministic.
type SymbolSet []Symbol

// NewSymbolSet builds a set from the runes of s, dropping duplicates
func NewSymbolSet(s string) SymbolSet {
	set := make(SymbolSet, 0, len(s))
	for _, r := range s {
		if !set.Contains(Symbol(r)) {
			set = append(set, Symbol(r))
		}
	}
	return set
}

// Contains returns true if sym is in the set
func (s SymbolSet) Contains(sym Symbol) bool {
	for _, c := range s {
		if c == sym {
			return true
		}
	}
	return false
}

// Intersect returns the members of s that are also in other, in s's order
func (s SymbolSet) Intersect(other SymbolSet) SymbolSet {
	out := make(SymbolSet, 0, len(s))
	for _, c := range s {
		if other.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}

// Union returns s followed by the members of other not already in s
func (s SymbolSet) Union(other SymbolSet) SymbolSet {
	out := make(SymbolSet, len(s), len(s)+len(other))
	copy(out, s)
	for _, c := range other {
		if !out.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}

// Equal reports whether both sets hold the same symbols, ignoring order
func (s SymbolSet) Equal(other SymbolSet) bool {
	if len(s) != len(other) {
		return false
	}
	for _, c := range s {
		if !other.Contains(c) {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not share backing storage with s
func (s SymbolSet) Clone() SymbolSet {
	out := make(SymbolSet, len(s))
	copy(out, s)
	return out
}

// String returns the symbols concatenated in order
func (s SymbolSet) String() string {
	var b strings.Builder
	for _, c := range s {
		b.WriteRune(rune(c))
	}
	return b.String()
}
