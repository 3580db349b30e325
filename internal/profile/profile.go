// Package profile defines the catalog-specific pieces of a query: the ADQL
// template, cleaning rules and the columns written to disk.
package profile

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/template"

	"github.com/obsfinder/obsfinder/internal/clean"
	"github.com/obsfinder/obsfinder/internal/persist"
	"github.com/obsfinder/obsfinder/internal/region"
	"github.com/obsfinder/obsfinder/internal/zeropoint"
)

// Service keys resolved through the configuration.
const (
	ServiceGaia = "gaia"
	ServiceIRSA = "irsa"
)

// Profile is immutable once registered.
type Profile struct {
	Name        string
	Description string
	// Service names the configured TAP service the query runs against.
	Service    string
	IDColumn   string
	Columns    []string
	Rules      []clean.Rule
	Derivs     []clean.Derivation
	ZeroPoint  *clean.ZeroPoint
	Outputs    []persist.Output
	DefaultExt string

	query *template.Template
}

var funcs = template.FuncMap{
	"deg": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
}

func newProfile(p Profile, query string) *Profile {
	p.query = template.Must(template.New(p.Name).Funcs(funcs).Parse(strings.TrimSpace(query)))
	return &p
}

// Query renders the ADQL text for one sub-region.
func (p *Profile) Query(sr region.SubRegion) (string, error) {
	var b strings.Builder
	if err := p.query.Execute(&b, sr); err != nil {
		return "", fmt.Errorf("render %s query: %w", p.Name, err)
	}
	return b.String(), nil
}

// CleanSpec returns the cleaning pipeline. model is applied to parallaxes
// when the profile supports it; nil disables the correction.
func (p *Profile) CleanSpec(model zeropoint.Model) clean.Spec {
	spec := clean.Spec{
		Rules:       slices.Clone(p.Rules),
		Derivations: slices.Clone(p.Derivs),
	}
	if p.ZeroPoint != nil && model != nil {
		zp := *p.ZeroPoint
		zp.Model = model
		spec.Derivations = append(spec.Derivations, zp)
	}
	return spec
}

// Codes lists the output short codes in file order.
func (p *Profile) Codes() []string {
	codes := make([]string, len(p.Outputs))
	for i, o := range p.Outputs {
		codes[i] = o.Code
	}
	return codes
}

var registry = map[string]*Profile{}

func register(p *Profile) {
	registry[p.Name] = p
}

// Lookup returns the named profile.
func Lookup(name string) (*Profile, error) {
	p, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names returns the registered profile names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
