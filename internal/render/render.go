// Package render turns a grid into text for terminals, logs and viewers.
package render

import (
	"fmt"
	"strings"

	"github.com/lawnchairsociety/terraingen/internal/wfc"
)

// ManyCandidates stands in for unresolved cells with ten or more candidates
const ManyCandidates = '+'

var symbolNames = map[wfc.Symbol]string{
	wfc.SymbolEmpty:     "Open ground",
	wfc.SymbolSlopeUp:   "Slope up",
	wfc.SymbolSlopeDown: "Slope down",
	wfc.SymbolHillTop:   "Hill top",
	wfc.SymbolHillRock:  "Hill rock",
}

// CellRune is the character drawn for one cell: the symbol when solved,
// otherwise the number of candidates left.
func CellRune(c wfc.CellState) rune {
	if c.Solved {
		return rune(c.Symbol)
	}
	if c.Candidates >= 10 {
		return ManyCandidates
	}
	return rune('0' + c.Candidates)
}

// Text renders the grid as one line per row, each terminated by a newline
func Text(grid *wfc.Grid) string {
	var b strings.Builder
	b.Grow((grid.Width() + 1) * grid.Height())

	for row := 0; row < grid.Height(); row++ {
		for col := 0; col < grid.Width(); col++ {
			b.WriteRune(CellRune(grid.Cell(row, col)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Framed renders the grid inside a border, under a header with seed, size and state
func Framed(grid *wfc.Grid) string {
	var b strings.Builder

	seed := "unseeded"
	if s, ok := grid.Seed(); ok {
		seed = fmt.Sprintf("%d", s)
	}
	b.WriteString(fmt.Sprintf("Terrain (Seed: %s, Size: %dx%d, State: %s, Steps: %d)\n",
		seed, grid.Width(), grid.Height(), grid.State(), grid.Steps()))

	border := "+" + strings.Repeat("-", grid.Width()) + "+\n"
	b.WriteString(border)
	for _, line := range strings.SplitAfter(Text(grid), "\n") {
		if line == "" {
			continue
		}
		b.WriteString("|" + strings.TrimSuffix(line, "\n") + "|\n")
	}
	b.WriteString(border)

	if err := grid.Err(); err != nil {
		b.WriteString(fmt.Sprintf("Failed: %v\n", err))
	}
	return b.String()
}

// Legend lists each symbol of the rule table with its weight
func Legend(rules *wfc.Rules) string {
	var b strings.Builder
	b.WriteString("\nLegend:\n")
	for _, sym := range rules.Alphabet() {
		name, ok := symbolNames[sym]
		if !ok {
			name = "Tile"
		}
		b.WriteString(fmt.Sprintf("  [%s] %-12s weight %d\n", sym.String(), name, rules.Weight(sym)))
	}
	b.WriteString("  [2-9] Unresolved cell, candidates left\n")
	b.WriteString(fmt.Sprintf("  [%c]  Unresolved cell, 10 or more candidates\n", ManyCandidates))
	return b.String()
}
