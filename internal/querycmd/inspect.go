package querycmd

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/obsfinder/obsfinder/internal/manifest"
	"github.com/obsfinder/obsfinder/internal/persist"
	obstable "github.com/obsfinder/obsfinder/internal/table"
)

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	var head int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Summarise a saved observation file",
		Long: `Inspect reads a CSV or Parquet file written by fetch and prints, per column,
the number of values and their range. The run manifest is shown when one sits
next to the file.`,
		Example: `  obsfinder inspect observations_2mass_0.000000_0.000000_0.200000.csv
  obsfinder inspect field.parquet --head 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeInspect(cmd.OutOrStdout(), args[0], head)
		},
	}

	cmd.Flags().IntVar(&head, "head", 0, "Also print the first N rows")

	return cmd
}

type columnSummary struct {
	count          int
	min, max, mean float64
}

func summarise(values []obstable.Value) columnSummary {
	s := columnSummary{min: math.Inf(1), max: math.Inf(-1)}
	sum := 0.0
	for _, v := range values {
		f, ok := v.Float64()
		if !ok {
			continue
		}
		s.count++
		sum += f
		s.min = math.Min(s.min, f)
		s.max = math.Max(s.max, f)
	}
	if s.count > 0 {
		s.mean = sum / float64(s.count)
	}
	return s
}

func executeInspect(w io.Writer, path string, head int) error {
	tbl, err := persist.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	fmt.Fprintf(w, "Loaded %d rows from %s\n", tbl.Len(), path)

	if m, err := manifest.Read(manifest.Path(path)); err == nil {
		fmt.Fprintf(w, "Run %s: profile %s, l=%g b=%g size=%g deg, %d/%d sources kept, %d job(s)\n",
			m.RunID, m.Profile, m.Region.CenterLong, m.Region.CenterLat, m.Region.Size,
			m.Rows.Kept, m.Rows.Fetched, len(m.Jobs))
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Values", "Min", "Max", "Mean"})
	for _, name := range tbl.Columns {
		values, err := tbl.Column(name)
		if err != nil {
			return err
		}
		s := summarise(values)
		if s.count == 0 {
			t.AppendRow(table.Row{name, 0, "", "", ""})
			continue
		}
		if name == tbl.IDColumn {
			t.AppendRow(table.Row{name, s.count, "", "", ""})
			continue
		}
		t.AppendRow(table.Row{name, s.count, formatFloat(s.min), formatFloat(s.max), formatFloat(s.mean)})
	}
	t.Render()

	if head <= 0 || tbl.Len() == 0 {
		return nil
	}

	rows := table.NewWriter()
	rows.SetOutputMirror(w)
	rows.SetStyle(table.StyleLight)
	header := make(table.Row, len(tbl.Columns))
	for i, c := range tbl.Columns {
		header[i] = c
	}
	rows.AppendHeader(header)
	for _, r := range tbl.Rows[:min(head, tbl.Len())] {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = formatCell(v)
		}
		rows.AppendRow(row)
	}
	rows.Render()
	return nil
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.4f", f)
}

func formatCell(v obstable.Value) string {
	switch v.Kind {
	case obstable.Int:
		return fmt.Sprintf("%d", v.I)
	case obstable.Float:
		return formatFloat(v.F)
	default:
		return ""
	}
}
