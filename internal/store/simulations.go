package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveSimulation caches a Monte Carlo run and its percentile bands,
// replacing any previous run for the same (template, week count) pair.
func (s *Store) SaveSimulation(run *SimulationRun, bands []BandRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM simulation_runs WHERE template_id = ? AND week_count = ?`,
		run.TemplateID, run.WeekCount); err != nil {
		return fmt.Errorf("clearing cached run: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO simulation_runs (template_id, week_count, run_id, iterations, valid_iterations, degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.TemplateID, run.WeekCount, run.RunID, run.Iterations, run.ValidIterations,
		boolToInt64(run.Degraded), run.CreatedAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO simulation_bands (template_id, week_count, week, metric,
			min_value, p15, p25, p35, median, p65, p75, p85, max_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bands {
		if _, err := stmt.Exec(run.TemplateID, run.WeekCount, b.Week, b.Metric,
			b.MinValue, b.P15, b.P25, b.P35, b.Median, b.P65, b.P75, b.P85, b.MaxValue); err != nil {
			return fmt.Errorf("inserting band week %d %s: %w", b.Week, b.Metric, err)
		}
	}

	return tx.Commit()
}

// GetSimulation retrieves a cached run and its bands.
func (s *Store) GetSimulation(templateID string, weekCount int) (*SimulationRun, []BandRow, error) {
	row := s.db.QueryRow(`
		SELECT template_id, week_count, run_id, iterations, valid_iterations, degraded, created_at
		FROM simulation_runs WHERE template_id = ? AND week_count = ?`, templateID, weekCount)

	var run SimulationRun
	var degraded int64
	var createdAt string
	err := row.Scan(&run.TemplateID, &run.WeekCount, &run.RunID, &run.Iterations,
		&run.ValidIterations, &degraded, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNoSimulation
	}
	if err != nil {
		return nil, nil, err
	}
	run.Degraded = degraded == 1
	run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}

	rows, err := s.db.Query(`
		SELECT template_id, week_count, week, metric,
			min_value, p15, p25, p35, median, p65, p75, p85, max_value
		FROM simulation_bands
		WHERE template_id = ? AND week_count = ?
		ORDER BY week, metric`, templateID, weekCount)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var bands []BandRow
	for rows.Next() {
		var b BandRow
		if err := rows.Scan(&b.TemplateID, &b.WeekCount, &b.Week, &b.Metric,
			&b.MinValue, &b.P15, &b.P25, &b.P35, &b.Median, &b.P65, &b.P75, &b.P85, &b.MaxValue); err != nil {
			return nil, nil, err
		}
		bands = append(bands, b)
	}
	return &run, bands, rows.Err()
}

// DeleteSimulation removes a cached run. Called when a template changes.
func (s *Store) DeleteSimulation(templateID string, weekCount int) error {
	_, err := s.db.Exec(`DELETE FROM simulation_runs WHERE template_id = ? AND week_count = ?`,
		templateID, weekCount)
	return err
}
