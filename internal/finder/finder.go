// Package finder runs a profile's query over a sky region and saves the
// cleaned observations.
package finder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/obsfinder/obsfinder/internal/catalog"
	"github.com/obsfinder/obsfinder/internal/clean"
	"github.com/obsfinder/obsfinder/internal/config"
	"github.com/obsfinder/obsfinder/internal/persist"
	"github.com/obsfinder/obsfinder/internal/profile"
	"github.com/obsfinder/obsfinder/internal/region"
	"github.com/obsfinder/obsfinder/internal/table"
)

// Request describes one run.
type Request struct {
	Profile string
	Region  region.Region
	// OutputDir defaults to the configured output directory, then the
	// working directory.
	OutputDir string
	// OutputName defaults to persist.DefaultName.
	OutputName string
	// ZeroPoint corrects parallaxes for profiles that support it.
	ZeroPoint bool
}

// Observation summarises a completed run.
type Observation struct {
	RunID      string
	Profile    string
	Region     region.Region
	SubRegions []region.SubRegion
	Jobs       []catalog.Job
	Path       string
	Fetched    int
	Kept       int
	ZeroPoint  bool
	Started    time.Time
	Elapsed    time.Duration
}

// Finder is safe for concurrent use; every query opens its own session.
type Finder struct {
	cfg       config.Config
	transport catalog.Transport
}

// New returns a Finder that reaches the archives through transport.
func New(cfg config.Config, transport catalog.Transport) *Finder {
	return &Finder{cfg: cfg, transport: transport}
}

// GetObservations queries every sub-region of req.Region in turn,
// concatenates the results, cleans them and writes the output file. Any
// failure aborts the whole run and leaves no file behind.
func (f *Finder) GetObservations(ctx context.Context, req Request) (*Observation, error) {
	started := time.Now()

	p, err := profile.Lookup(req.Profile)
	if err != nil {
		return nil, err
	}
	if req.ZeroPoint && p.ZeroPoint == nil {
		slog.Debug("Zero-point correction not supported by profile, ignoring", "profile", p.Name)
	}

	if err := req.Region.Validate(); err != nil {
		return nil, err
	}
	subRegions, err := region.Split(req.Region)
	if err != nil {
		return nil, err
	}

	dest := f.destination(p, req)
	if err := persist.CheckDestination(dest); err != nil {
		return nil, err
	}

	service, err := f.cfg.Service(p.Service)
	if err != nil {
		return nil, err
	}
	client := catalog.NewClient(service, f.transport, f.cfg.QueryOptions())

	obs := &Observation{
		RunID:      uuid.NewString(),
		Profile:    p.Name,
		Region:     req.Region,
		SubRegions: subRegions,
		Path:       dest,
		ZeroPoint:  req.ZeroPoint && p.ZeroPoint != nil,
		Started:    started,
	}

	if len(subRegions) > 1 {
		slog.Info("Query split in two parts", "profile", p.Name, "parts", len(subRegions))
	}

	tables := make([]*table.Table, 0, len(subRegions))
	for i, sr := range subRegions {
		text, err := p.Query(sr)
		if err != nil {
			return nil, err
		}

		slog.Info("Submitting query",
			"profile", p.Name,
			"service", service.Name,
			"part", i+1,
			"long_min", sr.LongMin,
			"long_max", sr.LongMax)
		slog.Debug("Query text", "query", text)

		res, err := client.Execute(ctx, catalog.Query{
			Text:        text,
			IDColumn:    p.IDColumn,
			Name:        fmt.Sprintf("obsfinder-%s-%s", p.Name, obs.RunID),
			Description: fmt.Sprintf("%s l=[%g,%g] b=[%g,%g]", p.Description, sr.LongMin, sr.LongMax, sr.LatMin, sr.LatMax),
		})
		if err != nil {
			return nil, fmt.Errorf("%s query part %d/%d: %w", p.Name, i+1, len(subRegions), err)
		}

		slog.Info("Query completed", "job", res.Job.ID, "rows", res.Table.Len(), "elapsed", res.Elapsed.Round(time.Millisecond))
		obs.Jobs = append(obs.Jobs, res.Job)
		tables = append(tables, res.Table)
	}

	merged, err := table.Concat(tables...)
	if err != nil {
		return nil, err
	}
	obs.Fetched = merged.Len()

	slog.Debug("Cleaning data", "profile", p.Name, "rows", merged.Len(), "zero_point", obs.ZeroPoint)
	spec := p.CleanSpec(nil)
	if obs.ZeroPoint {
		spec = p.CleanSpec(f.cfg.ZeroPoint.Model())
	}
	cleaned, err := clean.Clean(merged, spec)
	if err != nil {
		return nil, fmt.Errorf("clean %s results: %w", p.Name, err)
	}
	obs.Kept = cleaned.Len()

	if err := persist.Save(cleaned, dest, p.Outputs); err != nil {
		return nil, err
	}

	obs.Elapsed = time.Since(started)
	slog.Info("Observations saved", "path", dest, "sources", obs.Kept, "dropped", obs.Fetched-obs.Kept)
	return obs, nil
}

func (f *Finder) destination(p *profile.Profile, req Request) string {
	dir := req.OutputDir
	if dir == "" {
		dir = f.cfg.Output.Dir
	}
	if dir == "" {
		dir = "."
	}

	name := req.OutputName
	if name == "" {
		name = persist.DefaultName(p.Name, req.Region, p.DefaultExt)
	}
	return filepath.Join(dir, name)
}
