package persist

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/obsfinder/obsfinder/internal/table"
)

// IDCode is the short code of the integer source identifier.
const IDCode = "source_id"

func writeCSV(w io.Writer, t *table.Table, outputs []Output, idx []int) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)

	header := make([]string, len(outputs))
	for i, o := range outputs {
		header[i] = o.Code
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(outputs))
	for _, row := range t.Rows {
		if len(idx) == 1 && row[idx[0]].IsNull() {
			cw.Flush()
			if _, err := bw.WriteString("\"\"\n"); err != nil {
				return err
			}
			continue
		}
		for i, c := range idx {
			record[i] = formatCell(row[c])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

func formatCell(v table.Value) string {
	switch v.Kind {
	case table.Int:
		return strconv.FormatInt(v.I, 10)
	case table.Float:
		return strconv.FormatFloat(v.F, 'f', 4, 64)
	default:
		return ""
	}
}

func readCSV(path string) (*table.Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	text := string(raw)

	id := ""
	header, _, _ := strings.Cut(text, "\n")
	for _, h := range strings.Split(strings.TrimSpace(header), ",") {
		if h == IDCode {
			id = IDCode
		}
	}
	return table.Parse(text, id)
}
