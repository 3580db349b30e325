// Package zeropoint defines the parallax zero-point correction used when
// cleaning Gaia astrometry.
package zeropoint

// DefaultOffset is the global Gaia EDR3/DR3 parallax zero point in mas
// (median quasar parallax, Lindegren et al. 2021).
const DefaultOffset = -0.017

// Astrometric solution types as reported in astrometric_params_solved.
const (
	Solved5p = 31
	Solved6p = 95
)

// Inputs are the per-source quantities a zero-point model depends on.
type Inputs struct {
	GMag         float64
	NuEff        float64
	Pseudocolour float64
	EclLat       float64
	Solved       int
}

// Model computes the zero point to subtract from a raw parallax. ok is
// false when the model does not apply to the source.
type Model interface {
	Offset(in Inputs) (offset float64, ok bool)
}

// Func adapts a plain function to Model.
type Func func(in Inputs) (float64, bool)

// Offset calls f.
func (f Func) Offset(in Inputs) (float64, bool) { return f(in) }

// Global applies one constant offset to every 5- or 6-parameter solution.
type Global struct {
	Value float64
}

// Offset returns g.Value for sources with a full astrometric solution.
func (g Global) Offset(in Inputs) (float64, bool) {
	switch in.Solved {
	case Solved5p, Solved6p:
		return g.Value, true
	default:
		return 0, false
	}
}
