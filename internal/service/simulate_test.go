package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cardiokinetic/internal/config"
	"cardiokinetic/internal/plan"
	"cardiokinetic/internal/store"
)

const testTemplateYAML = `
name: Base Builder
weekConfig:
  type: fixed
  fixed: 6
weeks:
  - position: first
    phaseName: Base
    focus: Volume
    powerMultiplier: 0.9
    targetRPE: 5
    durationMinutes: 45
  - position: "50%"
    phaseName: Build
    focus: Intensity
    powerMultiplier: 1.05
    targetRPE: 7
    durationMinutes: 60
  - position: last
    phaseName: Peak
    focus: Sharpen
    powerMultiplier: 1.1
    targetRPE: 8
    durationMinutes: 40
`

func loadTestTemplate(t *testing.T) *plan.Template {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.yaml")
	if err := os.WriteFile(path, []byte(testTemplateYAML), 0644); err != nil {
		t.Fatal(err)
	}
	tpl, err := plan.Load(path)
	if err != nil {
		t.Fatalf("loading template: %v", err)
	}
	return tpl
}

func testSimService(t *testing.T) (*SimulationService, *store.Store) {
	t.Helper()
	st := store.NewTestStore(t)
	cfg := config.DefaultConfig()
	cfg.Simulation.Iterations = 100
	cfg.Simulation.Workers = 2
	cfg.Athlete.BasePower = 200
	return NewSimulationService(st, &cfg), st
}

func TestProject_RunsAndCaches(t *testing.T) {
	svc, _ := testSimService(t)
	tpl := loadTestTemplate(t)
	ctx := context.Background()

	first, err := svc.Project(ctx, tpl, 6, nil)
	if err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	if len(first.Weeks) != 6 {
		t.Fatalf("got %d weeks, want 6", len(first.Weeks))
	}
	if first.Run.RunID == "" {
		t.Error("missing run ID")
	}

	second, err := svc.Project(ctx, tpl, 6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Run.RunID != first.Run.RunID {
		t.Errorf("second Project reran the simulation: run %s != %s", second.Run.RunID, first.Run.RunID)
	}

	// Cached bands round-trip intact
	for i := range first.Weeks {
		if first.Weeks[i] != second.Weeks[i] {
			t.Errorf("week %d bands changed through the cache:\n%+v\n%+v",
				i+1, first.Weeks[i], second.Weeks[i])
		}
	}
}

func TestProject_DifferentLengthsAreSeparateRuns(t *testing.T) {
	svc, _ := testSimService(t)
	tpl := loadTestTemplate(t)
	ctx := context.Background()

	six, err := svc.Project(ctx, tpl, 6, nil)
	if err != nil {
		t.Fatal(err)
	}
	ten, err := svc.Project(ctx, tpl, 10, nil)
	if err != nil {
		t.Fatal(err)
	}

	if six.Run.RunID == ten.Run.RunID {
		t.Error("6- and 10-week projections share a run ID")
	}
	if len(ten.Weeks) != 10 {
		t.Errorf("10-week projection has %d weeks", len(ten.Weeks))
	}
}

func TestResimulate_ReplacesCache(t *testing.T) {
	svc, _ := testSimService(t)
	tpl := loadTestTemplate(t)
	ctx := context.Background()

	first, err := svc.Project(ctx, tpl, 6, nil)
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := svc.Resimulate(ctx, tpl, 6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Run.RunID == first.Run.RunID {
		t.Error("Resimulate reused the cached run ID")
	}

	cached, err := svc.Project(ctx, tpl, 6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cached.Run.RunID != fresh.Run.RunID {
		t.Error("cache still serves the stale run after Resimulate")
	}
}

func TestRecommend(t *testing.T) {
	svc, _ := testSimService(t)
	tpl := loadTestTemplate(t)
	ctx := context.Background()

	snap := &Snapshot{Fatigue: 50, Readiness: 50}
	adj, err := svc.Recommend(ctx, tpl, 6, 2, snap)
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}
	if adj.Advisory == "" {
		t.Error("missing advisory message")
	}

	if _, err := svc.Recommend(ctx, tpl, 6, 7, snap); err == nil {
		t.Error("Recommend() accepted a week outside the plan")
	}
}
