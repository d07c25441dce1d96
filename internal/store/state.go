package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetModelState retrieves the persisted fatigue model state.
func (s *Store) GetModelState() (*ModelState, error) {
	row := s.db.QueryRow(`
		SELECT s_metabolic, s_structural, carryover_readiness, carryover_fatigue, last_advanced
		FROM model_state WHERE id = 1`)

	var state ModelState
	var lastAdvanced string
	err := row.Scan(&state.SMetabolic, &state.SStructural,
		&state.CarryoverReadiness, &state.CarryoverFatigue, &lastAdvanced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoModelState
	}
	if err != nil {
		return nil, err
	}

	state.LastAdvanced, err = time.Parse(dayFormat, lastAdvanced)
	if err != nil {
		return nil, fmt.Errorf("parsing last_advanced %q: %w", lastAdvanced, err)
	}
	return &state, nil
}

// SaveModelState stores or updates the fatigue model state.
func (s *Store) SaveModelState(state *ModelState) error {
	_, err := s.db.Exec(`
		INSERT INTO model_state (id, s_metabolic, s_structural, carryover_readiness, carryover_fatigue, last_advanced)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			s_metabolic = excluded.s_metabolic,
			s_structural = excluded.s_structural,
			carryover_readiness = excluded.carryover_readiness,
			carryover_fatigue = excluded.carryover_fatigue,
			last_advanced = excluded.last_advanced,
			updated_at = CURRENT_TIMESTAMP`,
		state.SMetabolic, state.SStructural, state.CarryoverReadiness,
		state.CarryoverFatigue, state.LastAdvanced.Format(dayFormat))
	return err
}

// DeleteModelState clears the persisted fatigue model state. Used when the
// history is reprocessed from scratch.
func (s *Store) DeleteModelState() error {
	_, err := s.db.Exec(`DELETE FROM model_state WHERE id = 1`)
	return err
}

// GetCPRecord retrieves the persisted critical power estimate.
func (s *Store) GetCPRecord() (*CPRecord, error) {
	row := s.db.QueryRow(`
		SELECT cp, w_prime, confidence, data_points, decay_applied, last_updated
		FROM cp_estimate WHERE id = 1`)

	var rec CPRecord
	var decayApplied int64
	var lastUpdated string
	err := row.Scan(&rec.CP, &rec.WPrime, &rec.Confidence, &rec.DataPoints, &decayApplied, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCPRecord
	}
	if err != nil {
		return nil, err
	}

	rec.DecayApplied = decayApplied == 1
	rec.LastUpdated, err = time.Parse(time.RFC3339, lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("parsing last_updated %q: %w", lastUpdated, err)
	}
	return &rec, nil
}

// SaveCPRecord stores or updates the critical power estimate.
func (s *Store) SaveCPRecord(rec *CPRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO cp_estimate (id, cp, w_prime, confidence, data_points, decay_applied, last_updated)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cp = excluded.cp,
			w_prime = excluded.w_prime,
			confidence = excluded.confidence,
			data_points = excluded.data_points,
			decay_applied = excluded.decay_applied,
			last_updated = excluded.last_updated`,
		rec.CP, rec.WPrime, rec.Confidence, rec.DataPoints,
		boolToInt64(rec.DecayApplied), rec.LastUpdated.Format(time.RFC3339))
	return err
}

// InsertMismatch appends an RPE mismatch record.
func (s *Store) InsertMismatch(m *MismatchRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO rpe_mismatches (session_id, actual, predicted, direction, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.SessionID, m.Actual, m.Predicted, m.Direction, m.CreatedAt.Format(time.RFC3339))
	return err
}

// DeleteMismatches clears the mismatch history. Used when the model is
// rebuilt from scratch so a replay does not duplicate entries.
func (s *Store) DeleteMismatches() error {
	_, err := s.db.Exec(`DELETE FROM rpe_mismatches`)
	return err
}

// RecentMismatches returns the n most recent mismatch records, newest first.
func (s *Store) RecentMismatches(n int) ([]MismatchRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, actual, predicted, direction, created_at
		FROM rpe_mismatches ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MismatchRecord
	for rows.Next() {
		var m MismatchRecord
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Actual, &m.Predicted, &m.Direction, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		records = append(records, m)
	}
	return records, rows.Err()
}
