package clean

import (
	"fmt"
	"strings"

	"github.com/obsfinder/obsfinder/internal/table"
)

// Require drops rows with a null in any of Columns.
type Require struct {
	Columns []string
}

func (r Require) Name() string {
	return "require(" + strings.Join(r.Columns, ",") + ")"
}

func (r Require) Bind(resolve Resolver) (func(table.Row) bool, error) {
	idx, err := resolveAll(resolve, r.Columns)
	if err != nil {
		return nil, err
	}
	return func(row table.Row) bool {
		for _, i := range idx {
			if row[i].IsNull() {
				return false
			}
		}
		return true
	}, nil
}

// AnyBelow keeps a row when at least one of Columns is present and strictly
// below Threshold.
type AnyBelow struct {
	Columns   []string
	Threshold float64
}

func (r AnyBelow) Name() string {
	return fmt.Sprintf("any(%s)<%g", strings.Join(r.Columns, ","), r.Threshold)
}

func (r AnyBelow) Bind(resolve Resolver) (func(table.Row) bool, error) {
	idx, err := resolveAll(resolve, r.Columns)
	if err != nil {
		return nil, err
	}
	return func(row table.Row) bool {
		for _, i := range idx {
			if v, ok := row[i].Float64(); ok && v < r.Threshold {
				return true
			}
		}
		return false
	}, nil
}

func resolveAll(resolve Resolver, columns []string) ([]int, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		n, err := resolve(c)
		if err != nil {
			return nil, err
		}
		idx[i] = n
	}
	return idx, nil
}
