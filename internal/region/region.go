// Package region describes square sky windows in galactic coordinates and
// splits them into query bounds that never cross the 0/360 longitude seam.
package region

import (
	"fmt"
	"math"
)

const fullCircle = 360.0

// Region is a square window centred on (CenterLong, CenterLat).
// Size is the full window width in degrees.
type Region struct {
	CenterLong float64 `yaml:"l"`
	CenterLat  float64 `yaml:"b"`
	Size       float64 `yaml:"size"`
}

// SubRegion is a rectangular bound passed verbatim into a query predicate.
type SubRegion struct {
	LongMin float64 `yaml:"lmin"`
	LongMax float64 `yaml:"lmax"`
	LatMin  float64 `yaml:"bmin"`
	LatMax  float64 `yaml:"bmax"`
}

// InvalidRegionError reports a window that cannot be expressed as a query.
type InvalidRegionError struct {
	Region Region
	Reason string
}

func (e *InvalidRegionError) Error() string {
	return fmt.Sprintf("invalid region (l=%g, b=%g, size=%g): %s",
		e.Region.CenterLong, e.Region.CenterLat, e.Region.Size, e.Reason)
}

// FromArcmin builds a Region from a window size given in arcminutes.
func FromArcmin(long, lat, sizeArcmin float64) Region {
	return Region{CenterLong: long, CenterLat: lat, Size: sizeArcmin / 60}
}

// Half returns half the window width in degrees.
func (r Region) Half() float64 {
	return r.Size / 2
}

// Validate checks the centre and size against the coordinate conventions.
func (r Region) Validate() error {
	switch {
	case !finite(r.CenterLong, r.CenterLat, r.Size):
		return &InvalidRegionError{Region: r, Reason: "coordinates must be finite"}
	case r.CenterLong < 0 || r.CenterLong >= fullCircle:
		return &InvalidRegionError{Region: r, Reason: "longitude must lie in [0, 360)"}
	case r.CenterLat < -90 || r.CenterLat > 90:
		return &InvalidRegionError{Region: r, Reason: "latitude must lie in [-90, 90]"}
	case r.Size <= 0:
		return &InvalidRegionError{Region: r, Reason: "size must be positive"}
	case r.Size >= fullCircle:
		return &InvalidRegionError{Region: r, Reason: "size must be smaller than the full circle"}
	}
	return nil
}

// Split returns the one or two sub-regions covering r.
//
// A window whose lower edge falls below 0 is cut at the seam into
// [360+lo, 360] and [0, hi]. A window lying entirely in negative longitude
// is rejected. The upper seam is handled the same way so that every bound
// stays within [0, 360].
func Split(r Region) ([]SubRegion, error) {
	if !finite(r.CenterLong, r.CenterLat, r.Size) || r.Size <= 0 {
		return nil, &InvalidRegionError{Region: r, Reason: "size must be positive and finite"}
	}

	half := r.Half()
	lo := r.CenterLong - half
	hi := r.CenterLong + half
	latMin, latMax := r.CenterLat-half, r.CenterLat+half

	switch {
	case lo < 0 && hi <= 0:
		return nil, &InvalidRegionError{Region: r, Reason: "longitude range lies entirely below 0"}
	case lo < 0:
		return []SubRegion{
			{LongMin: fullCircle + lo, LongMax: fullCircle, LatMin: latMin, LatMax: latMax},
			{LongMin: 0, LongMax: hi, LatMin: latMin, LatMax: latMax},
		}, nil
	case lo >= fullCircle:
		return nil, &InvalidRegionError{Region: r, Reason: "longitude range lies entirely above 360"}
	case hi > fullCircle:
		return []SubRegion{
			{LongMin: lo, LongMax: fullCircle, LatMin: latMin, LatMax: latMax},
			{LongMin: 0, LongMax: hi - fullCircle, LatMin: latMin, LatMax: latMax},
		}, nil
	default:
		return []SubRegion{{LongMin: lo, LongMax: hi, LatMin: latMin, LatMax: latMax}}, nil
	}
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
