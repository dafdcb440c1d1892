// Package ruleset reads and writes adjacency rule tables as YAML.
package ruleset

import (
	"fmt"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/terraingen/internal/wfc"
)

// File is the on-disk layout of a rule table
type File struct {
	Name      string           `yaml:"name,omitempty"`
	Alphabet  string           `yaml:"alphabet"`
	Weights   map[string]int   `yaml:"weights"`
	Edges     Sides            `yaml:"edges,omitempty"`
	Neighbors map[string]Sides `yaml:"neighbors"`
}

// Sides holds one symbol string per direction. A nil field means "not set".
type Sides struct {
	Top    *string `yaml:"top,omitempty"`
	Right  *string `yaml:"right,omitempty"`
	Bottom *string `yaml:"bottom,omitempty"`
	Left   *string `yaml:"left,omitempty"`
}

func (s Sides) get(d wfc.Direction) *string {
	switch d {
	case wfc.Top:
		return s.Top
	case wfc.Right:
		return s.Right
	case wfc.Bottom:
		return s.Bottom
	case wfc.Left:
		return s.Left
	}
	return nil
}

func (s *Sides) set(d wfc.Direction, v string) {
	switch d {
	case wfc.Top:
		s.Top = &v
	case wfc.Right:
		s.Right = &v
	case wfc.Bottom:
		s.Bottom = &v
	case wfc.Left:
		s.Left = &v
	}
}

// Load reads and validates a rule table from a YAML file
func Load(path string) (*wfc.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rules, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// Parse builds and validates a rule table from YAML
func Parse(data []byte) (*wfc.Rules, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}
	return f.Rules()
}

// Rules converts the file into a validated rule table
func (f *File) Rules() (*wfc.Rules, error) {
	rules := wfc.NewRules(f.Alphabet)

	for key, weight := range f.Weights {
		sym, err := symbolKey(key)
		if err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
		rules.SetWeight(sym, weight)
	}

	for key, sides := range f.Neighbors {
		sym, err := symbolKey(key)
		if err != nil {
			return nil, fmt.Errorf("neighbors: %w", err)
		}
		for _, d := range wfc.AllDirections() {
			if v := sides.get(d); v != nil {
				rules.SetNeighbors(sym, d, *v)
			}
		}
	}

	for _, d := range wfc.AllDirections() {
		if v := f.Edges.get(d); v != nil {
			rules.SetEdge(d, *v)
		}
	}

	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// FromRules captures a rule table in its file layout
func FromRules(rules *wfc.Rules) *File {
	f := &File{
		Alphabet:  rules.Alphabet().String(),
		Weights:   make(map[string]int),
		Neighbors: make(map[string]Sides),
	}
	for _, sym := range rules.Alphabet() {
		f.Weights[sym.String()] = rules.Weight(sym)
		var sides Sides
		for _, d := range wfc.AllDirections() {
			sides.set(d, rules.CompatibleNeighbors(sym, d).String())
		}
		f.Neighbors[sym.String()] = sides
	}
	for _, d := range wfc.AllDirections() {
		f.Edges.set(d, rules.EdgeConstraint(d).String())
	}
	return f
}

// Marshal renders a rule table as YAML
func Marshal(rules *wfc.Rules) ([]byte, error) {
	return yaml.Marshal(FromRules(rules))
}

func symbolKey(key string) (wfc.Symbol, error) {
	if utf8.RuneCountInString(key) != 1 {
		return 0, fmt.Errorf("symbol key %q must be a single character", key)
	}
	r, _ := utf8.DecodeRuneInString(key)
	return wfc.Symbol(r), nil
}
