package render

import (
	"strings"
	"testing"

	"github.com/lawnchairsociety/terraingen/internal/wfc"
)

func openRules(alphabet string) *wfc.Rules {
	r := wfc.NewRules(alphabet)
	for _, sym := range r.Alphabet() {
		r.SetWeight(sym, 1)
		for _, d := range wfc.AllDirections() {
			r.SetNeighbors(sym, d, alphabet)
		}
	}
	return r
}

func newGrid(t *testing.T, w, h int, rules *wfc.Rules) *wfc.Grid {
	t.Helper()
	g, err := wfc.NewGrid(w, h, rules)
	if err != nil {
		t.Fatalf("NewGrid(%d, %d) error = %v", w, h, err)
	}
	return g
}

func TestCellRune(t *testing.T) {
	tests := []struct {
		cell wfc.CellState
		want rune
	}{
		{wfc.CellState{Solved: true, Symbol: '#', Candidates: 1}, '#'},
		{wfc.CellState{Solved: true, Symbol: ' ', Candidates: 1}, ' '},
		{wfc.CellState{Candidates: 2}, '2'},
		{wfc.CellState{Candidates: 9}, '9'},
		{wfc.CellState{Candidates: 10}, ManyCandidates},
		{wfc.CellState{Candidates: 26}, ManyCandidates},
	}

	for _, tt := range tests {
		if got := CellRune(tt.cell); got != tt.want {
			t.Errorf("CellRune(%+v) = %q, want %q", tt.cell, got, tt.want)
		}
	}
}

func TestTextUnresolved(t *testing.T) {
	g := newGrid(t, 3, 2, openRules("abc"))
	if got, want := Text(g), "333\n333\n"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}

	wide := newGrid(t, 2, 1, openRules("abcdefghijkl"))
	if got, want := Text(wide), "++\n"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestTextDefaultBorder(t *testing.T) {
	// A single row is both top and bottom edge, which leaves only open ground
	g := newGrid(t, 4, 1, wfc.DefaultRules())
	if got, want := Text(g), "    \n"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestTextSolved(t *testing.T) {
	g := newGrid(t, 4, 3, openRules("xy"))
	if err := g.Collapse(1); err != nil {
		t.Fatalf("Collapse() error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(Text(g), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for row, line := range lines {
		if len(line) != 4 {
			t.Errorf("row %d = %q, want 4 cells", row, line)
		}
		for col, r := range line {
			if want := rune(g.Cell(row, col).Symbol); r != want {
				t.Errorf("cell (%d,%d) = %q, want %q", row, col, r, want)
			}
		}
	}
}

func TestFramed(t *testing.T) {
	g := newGrid(t, 3, 2, openRules("abc"))

	out := Framed(g)
	want := "Terrain (Seed: unseeded, Size: 3x2, State: in_progress, Steps: 0)\n" +
		"+---+\n" +
		"|333|\n" +
		"|333|\n" +
		"+---+\n"
	if out != want {
		t.Errorf("Framed() =\n%s\nwant\n%s", out, want)
	}

	if err := g.Collapse(8); err != nil {
		t.Fatalf("Collapse() error = %v", err)
	}
	if out := Framed(g); !strings.HasPrefix(out, "Terrain (Seed: 8, Size: 3x2, State: solved, Steps: 6)\n") {
		t.Errorf("unexpected header in\n%s", out)
	}
}

func TestFramedContradiction(t *testing.T) {
	rules := wfc.NewRules("ab")
	for _, sym := range rules.Alphabet() {
		rules.SetWeight(sym, 1)
		for _, d := range wfc.AllDirections() {
			rules.SetNeighbors(sym, d, "ab")
		}
	}
	g := newGrid(t, 2, 1, rules)
	if err := g.Assign(0, 'z'); err == nil {
		t.Fatal("Assign() of unknown symbol should contradict")
	}

	if out := Framed(g); !strings.Contains(out, "State: contradicted") || !strings.Contains(out, "Failed: ") {
		t.Errorf("Framed() should report the failure:\n%s", out)
	}
}

func TestLegend(t *testing.T) {
	out := Legend(wfc.DefaultRules())

	for _, want := range []string{
		"[ ] Open ground",
		"[#] Hill rock",
		"weight 1000",
		"[+]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Legend() missing %q:\n%s", want, out)
		}
	}

	custom := Legend(openRules("q"))
	if !strings.Contains(custom, "[q] Tile") {
		t.Errorf("unnamed symbols should be listed as tiles:\n%s", custom)
	}
}
