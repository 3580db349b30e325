package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseError reports a malformed result payload.
type ParseError struct {
	Line   int
	Column string
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse result")
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes comma-delimited text with a header row. Blank fields become
// null, idColumn (if not empty) is read as an exact int64 and every other
// column as float64.
func Parse(raw string, idColumn string) (*Table, error) {
	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Line: 1, Msg: "missing header row"}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Msg: "read header", Err: err}
	}

	columns := make([]string, len(header))
	idIdx := -1
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
		if columns[i] == "" {
			return nil, &ParseError{Line: 1, Msg: fmt.Sprintf("empty column name at position %d", i+1)}
		}
		if idColumn != "" && columns[i] == idColumn {
			idIdx = i
		}
	}
	if idColumn != "" && idIdx < 0 {
		return nil, &ParseError{Line: 1, Column: idColumn, Msg: "identifier column missing from header"}
	}

	t := New(columns, idColumn)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Msg: "read row", Err: err}
		}
		line, _ := r.FieldPos(0)
		if len(record) != len(columns) {
			return nil, &ParseError{
				Line: line,
				Msg:  fmt.Sprintf("row has %d fields, header has %d", len(record), len(columns)),
			}
		}

		row := make(Row, len(record))
		for i, field := range record {
			v, err := parseField(strings.TrimSpace(field), i == idIdx)
			if err != nil {
				return nil, &ParseError{Line: line, Column: columns[i], Msg: "not a number", Err: err}
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

func parseField(field string, isID bool) (Value, error) {
	if field == "" {
		return NullValue(), nil
	}
	if isID {
		i, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return Value{}, err
		}
		return IntValue(i), nil
	}
	f, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return Value{}, err
	}
	if math.IsNaN(f) {
		return NullValue(), nil
	}
	return FloatValue(f), nil
}

// Format serializes t in the layout Parse reads. Floats use the shortest
// exact representation so that Parse(Format(t)) reproduces t.
func Format(t *Table) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(t.Columns); err != nil {
		return "", err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		if len(row) == 1 && row[0].IsNull() {
			// A lone empty field would be a blank line, which readers skip.
			w.Flush()
			b.WriteString("\"\"\n")
			continue
		}
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func formatValue(v Value) string {
	switch v.Kind {
	case Float:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case Int:
		return strconv.FormatInt(v.I, 10)
	default:
		return ""
	}
}
