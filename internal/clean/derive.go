package clean

import (
	"fmt"
	"math"

	"github.com/obsfinder/obsfinder/internal/table"
	"github.com/obsfinder/obsfinder/internal/zeropoint"
)

// pogson is 2.5/ln(10), the magnitude error of a unit relative flux error.
var pogson = 2.5 / math.Ln10

// MagErrorFromSNR converts a flux-over-error ratio into a magnitude
// uncertainty.
func MagErrorFromSNR(fluxOverError float64) float64 {
	return pogson / fluxOverError
}

// MagError replaces the flux-over-error column Source with the magnitude
// uncertainty column Target.
type MagError struct {
	Source string
	Target string
}

func (d MagError) Name() string { return "mag_error(" + d.Source + ")" }

func (d MagError) Renames() (string, string) { return d.Source, d.Target }

func (d MagError) Apply(t *table.Table) error {
	idx := t.Index(d.Source)
	if idx < 0 {
		if t.Has(d.Target) {
			return nil
		}
		return fmt.Errorf("column %q not in result", d.Source)
	}

	for _, row := range t.Rows {
		if snr, ok := row[idx].Float64(); ok {
			row[idx] = table.FloatValue(MagErrorFromSNR(snr))
		}
	}
	return t.Rename(d.Source, d.Target)
}

// ZeroPoint subtracts the model's parallax zero point from the parallax
// column and stores the offset in Target. Sources the model does not cover
// keep their raw parallax and get a null offset. The step is skipped when
// Target already exists.
type ZeroPoint struct {
	Model        zeropoint.Model
	Parallax     string
	GMag         string
	NuEff        string
	Pseudocolour string
	EclLat       string
	Solved       string
	Target       string
}

func (d ZeroPoint) Name() string { return "zero_point(" + d.Parallax + ")" }

func (d ZeroPoint) Apply(t *table.Table) error {
	if t.Has(d.Target) {
		return nil
	}
	if d.Model == nil {
		return fmt.Errorf("no zero-point model configured")
	}

	cols := []string{d.Parallax, d.GMag, d.NuEff, d.Pseudocolour, d.EclLat, d.Solved}
	idx := make([]int, len(cols))
	for i, c := range cols {
		if idx[i] = t.Index(c); idx[i] < 0 {
			return fmt.Errorf("column %q not in result", c)
		}
	}

	target, err := t.AddColumn(d.Target)
	if err != nil {
		return err
	}

	for _, row := range t.Rows {
		plx, ok := row[idx[0]].Float64()
		if !ok {
			continue
		}
		gmag, ok1 := row[idx[1]].Float64()
		solved, ok5 := row[idx[5]].Float64()
		if !ok1 || !ok5 {
			continue
		}
		// Missing colour terms are passed as NaN; the model decides
		// whether it needs them for this solution type.
		in := zeropoint.Inputs{
			GMag:         gmag,
			NuEff:        floatOrNaN(row[idx[2]]),
			Pseudocolour: floatOrNaN(row[idx[3]]),
			EclLat:       floatOrNaN(row[idx[4]]),
			Solved:       int(solved),
		}
		offset, ok := d.Model.Offset(in)
		if !ok || math.IsNaN(offset) {
			continue
		}
		row[idx[0]] = table.FloatValue(plx - offset)
		row[target] = table.FloatValue(offset)
	}
	return nil
}

func floatOrNaN(v table.Value) float64 {
	if f, ok := v.Float64(); ok {
		return f
	}
	return math.NaN()
}
