package wfc

import (
	"errors"
	"testing"
)

// openRules returns a table where every symbol may sit next to every other
func openRules(alphabet string) *Rules {
	r := NewRules(alphabet)
	for _, sym := range NewSymbolSet(alphabet) {
		r.SetWeight(sym, 1)
		for _, d := range AllDirections() {
			r.SetNeighbors(sym, d, alphabet)
		}
	}
	return r
}

// checkerRules returns a two-symbol table that only admits a checkerboard
func checkerRules() *Rules {
	r := NewRules("ab")
	r.SetWeight('a', 1)
	r.SetWeight('b', 3)
	for _, d := range AllDirections() {
		r.SetNeighbors('a', d, "b")
		r.SetNeighbors('b', d, "a")
	}
	return r
}

func TestDefaultRulesValid(t *testing.T) {
	rules := DefaultRules()
	if err := rules.Validate(); err != nil {
		t.Fatalf("DefaultRules().Validate() = %v", err)
	}
	if got := rules.Alphabet().String(); got != DefaultAlphabet {
		t.Errorf("Alphabet() = %q, want %q", got, DefaultAlphabet)
	}
}

func TestDefaultRulesWeights(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		sym  Symbol
		want int
	}{
		{SymbolEmpty, 1000},
		{SymbolSlopeUp, 10},
		{SymbolSlopeDown, 10},
		{SymbolHillTop, 50},
		{SymbolHillRock, 100},
		{'x', 0},
	}

	for _, tc := range tests {
		if got := rules.Weight(tc.sym); got != tc.want {
			t.Errorf("Weight(%q) = %d, want %d", tc.sym.String(), got, tc.want)
		}
	}
}

func TestDefaultRulesNeighbors(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		sym  Symbol
		dir  Direction
		want string
	}{
		{SymbolEmpty, Top, " /\\#"},
		{SymbolEmpty, Right, " /_"},
		{SymbolSlopeUp, Right, "#\\"},
		{SymbolSlopeDown, Left, "/#"},
		{SymbolHillTop, Bottom, "#"},
		{SymbolHillRock, Top, "/\\_#"},
		{SymbolHillRock, Right, "#\\"},
	}

	for _, tc := range tests {
		if got := rules.CompatibleNeighbors(tc.sym, tc.dir).String(); got != tc.want {
			t.Errorf("CompatibleNeighbors(%q, %s) = %q, want %q", tc.sym.String(), tc.dir, got, tc.want)
		}
	}

	if got := rules.CompatibleNeighbors('x', Top); len(got) != 0 {
		t.Errorf("CompatibleNeighbors of unknown symbol = %q, want empty", got.String())
	}
}

func TestDefaultRulesEdges(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		side Direction
		want string
	}{
		{Top, " _"},
		{Right, " \\_#"},
		{Bottom, " /\\#"},
		{Left, " /_#"},
	}

	for _, tc := range tests {
		if got := rules.EdgeConstraint(tc.side).String(); got != tc.want {
			t.Errorf("EdgeConstraint(%s) = %q, want %q", tc.side, got, tc.want)
		}
	}
}

func TestNewRulesEdgesDefaultToAlphabet(t *testing.T) {
	rules := NewRules("abc")
	for _, side := range AllDirections() {
		if got := rules.EdgeConstraint(side).String(); got != "abc" {
			t.Errorf("EdgeConstraint(%s) = %q, want %q", side, got, "abc")
		}
	}
}

func TestRulesValidateErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Rules
	}{
		{"empty alphabet", func() *Rules { return NewRules("") }},
		{"missing weight", func() *Rules {
			r := openRules("ab")
			r.SetWeight('b', 0)
			return r
		}},
		{"missing direction", func() *Rules {
			r := NewRules("a")
			r.SetWeight('a', 1)
			r.SetNeighbors('a', Top, "a")
			return r
		}},
		{"unknown neighbor", func() *Rules {
			r := openRules("ab")
			r.SetNeighbors('a', Left, "az")
			return r
		}},
		{"rule for unknown symbol", func() *Rules {
			r := openRules("ab")
			r.SetNeighbors('z', Left, "a")
			return r
		}},
		{"bad direction", func() *Rules {
			r := openRules("ab")
			r.SetNeighbors('a', Direction(7), "b")
			return r
		}},
		{"unknown edge symbol", func() *Rules {
			r := openRules("ab")
			r.SetEdge(Bottom, "q")
			return r
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.build().Validate()
			if !errors.Is(err, ErrInvalidRules) {
				t.Errorf("Validate() = %v, want ErrInvalidRules", err)
			}
		})
	}
}

func TestWeightedPickSingleSymbol(t *testing.T) {
	rules := DefaultRules()
	for seed := int64(0); seed < 50; seed++ {
		s := NewSampler(seed)
		got, err := rules.WeightedPick(NewDomain(NewSymbolSet("/")), s)
		if err != nil {
			t.Fatalf("seed %d: WeightedPick() error = %v", seed, err)
		}
		if got != SymbolSlopeUp {
			t.Errorf("seed %d: WeightedPick() = %q, want %q", seed, got.String(), "/")
		}
		if s.Draws() != 1 {
			t.Errorf("seed %d: Draws() = %d, want 1", seed, s.Draws())
		}
	}
}

func TestWeightedPickEmptyDomain(t *testing.T) {
	rules := DefaultRules()
	if _, err := rules.WeightedPick(&Domain{}, NewSampler(1)); !errors.Is(err, ErrEmptyDomain) {
		t.Errorf("WeightedPick(empty) error = %v, want ErrEmptyDomain", err)
	}
	if _, err := rules.WeightedPick(nil, NewSampler(1)); !errors.Is(err, ErrEmptyDomain) {
		t.Errorf("WeightedPick(nil) error = %v, want ErrEmptyDomain", err)
	}
}

func TestWeightedPickFollowsWeights(t *testing.T) {
	r := openRules("ab")
	r.SetWeight('a', 1)
	r.SetWeight('b', 999)

	s := NewSampler(7)
	d := NewDomain(NewSymbolSet("ab"))
	counts := map[Symbol]int{}
	for i := 0; i < 1000; i++ {
		sym, err := r.WeightedPick(d, s)
		if err != nil {
			t.Fatalf("WeightedPick() error = %v", err)
		}
		counts[sym]++
	}

	if counts['b'] < 950 {
		t.Errorf("heavy symbol picked %d/1000 times, want at least 950", counts['b'])
	}
	if counts['a']+counts['b'] != 1000 {
		t.Errorf("picked symbols outside the domain: %v", counts)
	}
}

func TestWeightedPickOnlyReturnsDomainMembers(t *testing.T) {
	rules := DefaultRules()
	d := NewDomain(NewSymbolSet("_#"))
	s := NewSampler(3)
	for i := 0; i < 200; i++ {
		sym, err := rules.WeightedPick(d, s)
		if err != nil {
			t.Fatalf("WeightedPick() error = %v", err)
		}
		if !d.Contains(sym) {
			t.Fatalf("WeightedPick() = %q, not in domain %q", sym.String(), d.symbols.String())
		}
	}
}

func TestRulesAccessorsReturnCopies(t *testing.T) {
	rules := DefaultRules()

	neighbors := rules.CompatibleNeighbors(SymbolHillTop, Bottom)
	neighbors[0] = 'z'
	if got := rules.CompatibleNeighbors(SymbolHillTop, Bottom).String(); got != "#" {
		t.Errorf("CompatibleNeighbors after caller write = %q, want %q", got, "#")
	}

	edge := rules.EdgeConstraint(Top)
	edge[0] = 'z'
	if got := rules.EdgeConstraint(Top).String(); got != " _" {
		t.Errorf("EdgeConstraint after caller write = %q, want %q", got, " _")
	}

	if err := rules.Validate(); err != nil {
		t.Errorf("Validate() after caller writes = %v", err)
	}
}
