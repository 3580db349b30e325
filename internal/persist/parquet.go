package persist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/obsfinder/obsfinder/internal/table"
)

// columnsKey stores the written column order in the file metadata; parquet
// groups sort their fields by name.
const columnsKey = "obsfinder.columns"

func parquetSchema(outputs []Output) *parquet.Schema {
	group := parquet.Group{}
	for _, o := range outputs {
		if o.Code == IDCode {
			group[o.Code] = parquet.Optional(parquet.Int(64))
		} else {
			group[o.Code] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		}
	}
	return parquet.NewSchema("observations", group)
}

func writeParquet(w io.Writer, t *table.Table, outputs []Output, idx []int) error {
	schema := parquetSchema(outputs)

	codes := make([]string, len(outputs))
	leaves := make([]int, len(outputs))
	for i, o := range outputs {
		codes[i] = o.Code
		leaf, ok := schema.Lookup(o.Code)
		if !ok {
			return fmt.Errorf("schema has no column %q", o.Code)
		}
		leaves[i] = leaf.ColumnIndex
	}

	pw := parquet.NewWriter(w, schema, parquet.KeyValueMetadata(columnsKey, strings.Join(codes, ",")))

	rows := make([]parquet.Row, 0, len(t.Rows))
	for _, src := range t.Rows {
		row := make(parquet.Row, len(outputs))
		for i, c := range idx {
			row[leaves[i]] = parquetValue(src[c], outputs[i].Code == IDCode).Level(0, definitionLevel(src[c]), leaves[i])
		}
		rows = append(rows, row)
	}

	if _, err := pw.WriteRows(rows); err != nil {
		return err
	}
	return pw.Close()
}

func definitionLevel(v table.Value) int {
	if v.IsNull() {
		return 0
	}
	return 1
}

func parquetValue(v table.Value, isID bool) parquet.Value {
	if isID {
		switch v.Kind {
		case table.Int:
			return parquet.Int64Value(v.I)
		case table.Float:
			return parquet.Int64Value(int64(v.F))
		}
		return parquet.NullValue()
	}
	if f, ok := v.Float64(); ok {
		return parquet.DoubleValue(f)
	}
	return parquet.NullValue()
}

func readParquet(path string) (*table.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: fmt.Errorf("open parquet: %w", err)}
	}

	leafNames := make([]string, 0)
	for _, p := range pf.Schema().Columns() {
		leafNames = append(leafNames, strings.Join(p, "."))
	}

	// Restore the written order; files from other tools keep schema order.
	columns := leafNames
	if order, ok := pf.Lookup(columnsKey); ok && order != "" {
		columns = strings.Split(order, ",")
	}
	position := map[int]int{}
	for leaf, name := range leafNames {
		for i, c := range columns {
			if c == name {
				position[leaf] = i
			}
		}
	}

	id := ""
	for _, c := range columns {
		if c == IDCode {
			id = IDCode
		}
	}
	t := table.New(columns, id)

	buf := make([]parquet.Row, 128)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, r := range buf[:n] {
				out := make(table.Row, len(columns))
				for _, v := range r {
					if i, ok := position[v.Column()]; ok {
						out[i] = tableValue(v)
					}
				}
				t.Rows = append(t.Rows, out)
			}
			if errors.Is(err, io.EOF) || (err == nil && n == 0) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, &IOError{Op: "read", Path: path, Err: err}
			}
		}
		rows.Close()
	}

	return t, nil
}

func tableValue(v parquet.Value) table.Value {
	if v.IsNull() {
		return table.NullValue()
	}
	switch v.Kind() {
	case parquet.Int64:
		return table.IntValue(v.Int64())
	case parquet.Int32:
		return table.IntValue(int64(v.Int32()))
	case parquet.Double:
		return table.FloatValue(v.Double())
	case parquet.Float:
		return table.FloatValue(float64(v.Float()))
	default:
		return table.NullValue()
	}
}
