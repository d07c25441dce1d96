package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cardiokinetic/internal/analysis"
	"cardiokinetic/internal/config"
	"cardiokinetic/internal/plan"
	"cardiokinetic/internal/store"
)

// SimulationService runs Monte Carlo projections over plan templates and
// caches the percentile bands per (template, week count) pair. Reruns for
// the same pair are served from the cache.
type SimulationService struct {
	store *store.Store
	cfg   *config.Config
}

func NewSimulationService(st *store.Store, cfg *config.Config) *SimulationService {
	return &SimulationService{store: st, cfg: cfg}
}

// Projection is a cached or freshly computed simulation outcome.
type Projection struct {
	Run   store.SimulationRun
	Weeks []analysis.WeekBands
}

// Project returns the percentile bands for a template at the given length,
// simulating only when no cached run exists. Progress updates stream to
// progress if non-nil.
func (s *SimulationService) Project(ctx context.Context, tpl *plan.Template, weekCount int, progress chan<- analysis.SimProgress) (*Projection, error) {
	run, rows, err := s.store.GetSimulation(tpl.ID, weekCount)
	if err == nil {
		return &Projection{Run: *run, Weeks: rowsToBands(rows, weekCount)}, nil
	}
	if !errors.Is(err, store.ErrNoSimulation) {
		return nil, fmt.Errorf("loading cached simulation: %w", err)
	}

	return s.Resimulate(ctx, tpl, weekCount, progress)
}

// Resimulate always runs a fresh simulation and replaces the cached one.
// Used after a plan adjustment changes the week specs.
func (s *SimulationService) Resimulate(ctx context.Context, tpl *plan.Template, weekCount int, progress chan<- analysis.SimProgress) (*Projection, error) {
	weeks := tpl.InterpolateWeeks(weekCount)
	cp := s.currentCP()
	result, err := analysis.Simulate(ctx, weeks, analysis.SimOptions{
		Iterations: s.cfg.Simulation.Iterations,
		Workers:    s.cfg.Simulation.Workers,
		Seed:       s.cfg.Simulation.Seed,
		BasePower:  s.cfg.Athlete.BasePower,
		CP:         cp,
	}, progress)
	if err != nil {
		return nil, err
	}

	run := &store.SimulationRun{
		TemplateID:      tpl.ID,
		WeekCount:       weekCount,
		RunID:           uuid.New().String(),
		Iterations:      result.Iterations,
		ValidIterations: result.ValidIterations,
		Degraded:        result.Degraded,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.SaveSimulation(run, bandsToRows(tpl.ID, weekCount, result.Weeks)); err != nil {
		return nil, fmt.Errorf("caching simulation: %w", err)
	}

	return &Projection{Run: *run, Weeks: result.Weeks}, nil
}

// Recommend compares the snapshot against the simulated band for the given
// plan week and returns the adaptive adjustment for the week ahead.
func (s *SimulationService) Recommend(ctx context.Context, tpl *plan.Template, weekCount, week int, snap *Snapshot) (*analysis.Adjustment, error) {
	if week < 1 || week > weekCount {
		return nil, fmt.Errorf("week %d outside plan of %d weeks", week, weekCount)
	}

	proj, err := s.Project(ctx, tpl, weekCount, nil)
	if err != nil {
		return nil, err
	}

	adj := analysis.Adapt(snap.Fatigue, snap.Readiness, proj.Weeks[week-1])
	return &adj, nil
}

// currentCP falls back to the configured base power before any estimate
// exists.
func (s *SimulationService) currentCP() float64 {
	rec, err := s.store.GetCPRecord()
	if err != nil || rec.CP <= 0 {
		return s.cfg.Athlete.BasePower
	}
	return rec.CP
}

func bandsToRows(templateID string, weekCount int, weeks []analysis.WeekBands) []store.BandRow {
	rows := make([]store.BandRow, 0, 2*len(weeks))
	for _, wb := range weeks {
		rows = append(rows,
			bandRow(templateID, weekCount, wb.Week, "fatigue", wb.Fatigue),
			bandRow(templateID, weekCount, wb.Week, "readiness", wb.Readiness),
		)
	}
	return rows
}

func bandRow(templateID string, weekCount, week int, metric string, b analysis.Bands) store.BandRow {
	return store.BandRow{
		TemplateID: templateID,
		WeekCount:  weekCount,
		Week:       week,
		Metric:     metric,
		MinValue:   b.Min,
		P15:        b.P15,
		P25:        b.P25,
		P35:        b.P35,
		Median:     b.Median,
		P65:        b.P65,
		P75:        b.P75,
		P85:        b.P85,
		MaxValue:   b.Max,
	}
}

func rowsToBands(rows []store.BandRow, weekCount int) []analysis.WeekBands {
	weeks := make([]analysis.WeekBands, weekCount)
	for i := range weeks {
		weeks[i].Week = i + 1
	}
	for _, row := range rows {
		if row.Week < 1 || row.Week > weekCount {
			continue
		}
		b := analysis.Bands{
			Min: row.MinValue, P15: row.P15, P25: row.P25, P35: row.P35,
			Median: row.Median,
			P65:    row.P65, P75: row.P75, P85: row.P85, Max: row.MaxValue,
		}
		switch row.Metric {
		case "fatigue":
			weeks[row.Week-1].Fatigue = b
		case "readiness":
			weeks[row.Week-1].Readiness = b
		}
	}
	return weeks
}
