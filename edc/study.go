// Package edc describes study configuration exported from electronic data
// capture systems: visits, forms and bindings between them.
package edc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Visit is a grouping unit over forms (study timepoint).
type Visit struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Form is a leaf content unit, Page is 1-based page number of the form in
// the original annotated CRF.
type Form struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Page  int    `json:"page"`
	Order int    `json:"order"`
}

// Binding associates parent with ordered list of children. In a Study
// parents are visits and children are forms.
type Binding struct {
	Parent   int   `json:"parent"`
	Children []int `json:"children"`
}

// Study is binding graph payload.
type Study struct {
	Visits   []Visit   `json:"visits"`
	Forms    []Form    `json:"forms"`
	Bindings []Binding `json:"bindings"`
}

func (s *Study) VisitMap() map[int]Visit {
	m := make(map[int]Visit, len(s.Visits))
	for _, v := range s.Visits {
		m[v.ID] = v
	}
	return m
}

func (s *Study) FormMap() map[int]Form {
	m := make(map[int]Form, len(s.Forms))
	for _, f := range s.Forms {
		m[f.ID] = f
	}
	return m
}

// Validate checks entity tables. Bindings referencing unknown ids are allowed,
// they simply contribute nothing to render trees.
func (s *Study) Validate() error {
	visits := make(map[int]bool, len(s.Visits))
	for _, v := range s.Visits {
		if visits[v.ID] {
			return &ConfigError{Reason: fmt.Sprintf("duplicate visit id %d", v.ID)}
		}
		visits[v.ID] = true
	}
	forms := make(map[int]bool, len(s.Forms))
	for _, f := range s.Forms {
		if forms[f.ID] {
			return &ConfigError{Reason: fmt.Sprintf("duplicate form id %d", f.ID)}
		}
		if f.Page < 1 {
			return &ConfigError{Reason: fmt.Sprintf("form %d (%s) has invalid page %d", f.ID, f.Name, f.Page)}
		}
		forms[f.ID] = true
	}
	return nil
}

// Decode reads study from JSON payload.
func Decode(data []byte) (*Study, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var s Study
	if err := dec.Decode(&s); err != nil {
		return nil, &ConfigError{Reason: "malformed study payload", Err: err}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads study from JSON file.
func Load(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Reason: "unable to read study", Err: err}
	}
	s, err := Decode(data)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	return s, nil
}

// Encode returns indented JSON payload.
func (s *Study) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("unable to marshal study: %w", err)
	}
	return data, nil
}

func (v Visit) Identity() int { return v.ID }
func (v Visit) Ordinal() int  { return v.Order }
func (v Visit) Label() string { return v.Name }

func (f Form) Identity() int { return f.ID }
func (f Form) Ordinal() int  { return f.Order }
func (f Form) Label() string { return f.Name }

// Pair is a single visit - form association found in EDC export.
type Pair struct {
	Visit int
	Form  int
}

// GroupBindings turns pairs into visit keyed bindings. Visits keep order of
// first appearance, forms keep order of pairs.
func GroupBindings(pairs []Pair) []Binding {
	var (
		out []Binding
		pos = make(map[int]int)
	)
	for _, p := range pairs {
		i, ok := pos[p.Visit]
		if !ok {
			i = len(out)
			pos[p.Visit] = i
			out = append(out, Binding{Parent: p.Visit})
		}
		out[i].Children = append(out[i].Children, p.Form)
	}
	return out
}
