// Package clean filters and enriches query results according to a catalog
// profile's cleaning rules.
package clean

import (
	"fmt"
	"slices"

	"github.com/obsfinder/obsfinder/internal/table"
)

// Spec lists the rules and derivations applied to a table. Rules run first
// and decide which rows survive; derivations then add or rewrite columns.
type Spec struct {
	Rules       []Rule
	Derivations []Derivation
}

// Resolver maps a column name to its index in the table being cleaned.
type Resolver func(name string) (int, error)

// Rule selects rows.
type Rule interface {
	Name() string
	// Bind resolves the columns the rule reads and returns its predicate.
	Bind(resolve Resolver) (func(table.Row) bool, error)
}

// Derivation computes columns in place.
type Derivation interface {
	Name() string
	Apply(t *table.Table) error
}

// renamer is implemented by derivations that rename a column, so rules
// written against the original name keep working on already cleaned data.
type renamer interface {
	Renames() (from, to string)
}

// Clean returns a new table holding the rows of t that pass every rule,
// with every derivation applied. t is not modified and row order is kept.
// Cleaning an already cleaned table returns an identical table.
func Clean(t *table.Table, spec Spec) (*table.Table, error) {
	resolve := newResolver(t, spec.Derivations)

	predicates := make([]func(table.Row) bool, 0, len(spec.Rules))
	for _, rule := range spec.Rules {
		p, err := rule.Bind(resolve)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		predicates = append(predicates, p)
	}

	out := table.New(t.Columns, t.IDColumn)
	out.Rows = make([]table.Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		if keep(row, predicates) {
			out.Rows = append(out.Rows, slices.Clone(row))
		}
	}

	for _, d := range spec.Derivations {
		if err := d.Apply(out); err != nil {
			return nil, fmt.Errorf("derivation %s: %w", d.Name(), err)
		}
	}

	return out, nil
}

func keep(row table.Row, predicates []func(table.Row) bool) bool {
	for _, p := range predicates {
		if !p(row) {
			return false
		}
	}
	return true
}

func newResolver(t *table.Table, derivations []Derivation) Resolver {
	renamed := map[string]string{}
	for _, d := range derivations {
		if r, ok := d.(renamer); ok {
			from, to := r.Renames()
			renamed[from] = to
		}
	}

	return func(name string) (int, error) {
		if idx := t.Index(name); idx >= 0 {
			return idx, nil
		}
		if to, ok := renamed[name]; ok {
			if idx := t.Index(to); idx >= 0 {
				return idx, nil
			}
		}
		return -1, fmt.Errorf("column %q not in result", name)
	}
}
