package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertSession stores a new session and returns its ID.
func (s *Store) InsertSession(sess *Session) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO sessions (date, duration_minutes, average_power, rpe, style, source, external_id, has_samples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.Date.Format(time.RFC3339), sess.DurationMinutes, sess.AveragePower, sess.RPE,
		sess.Style, sess.Source, ptrInt64ToNullInt64(sess.ExternalID), boolToInt64(sess.HasSamples),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting session: %w", err)
	}
	return result.LastInsertId()
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(id int64) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, date, duration_minutes, average_power, rpe, style, source, external_id, has_samples
		FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// GetSessionByExternalID retrieves a session by its Strava activity ID.
// Returns nil without error when no such session exists.
func (s *Store) GetSessionByExternalID(externalID int64) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, date, duration_minutes, average_power, rpe, style, source, external_id, has_samples
		FROM sessions WHERE external_id = ?`, externalID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

// ListSessions returns all sessions ordered by date ascending.
func (s *Store) ListSessions() ([]Session, error) {
	return s.querySessions(`
		SELECT id, date, duration_minutes, average_power, rpe, style, source, external_id, has_samples
		FROM sessions ORDER BY date ASC`)
}

// ListSessionsUpTo returns sessions dated on or before the given day,
// ordered by date ascending. Supports backtesting with a simulated
// current date.
func (s *Store) ListSessionsUpTo(day time.Time) ([]Session, error) {
	cutoff := day.AddDate(0, 0, 1).Format(time.RFC3339)
	return s.querySessions(`
		SELECT id, date, duration_minutes, average_power, rpe, style, source, external_id, has_samples
		FROM sessions WHERE date < ? ORDER BY date ASC`, cutoff)
}

// ListRecentSessions returns the n most recent sessions, newest first.
func (s *Store) ListRecentSessions(n int) ([]Session, error) {
	return s.querySessions(`
		SELECT id, date, duration_minutes, average_power, rpe, style, source, external_id, has_samples
		FROM sessions ORDER BY date DESC LIMIT ?`, n)
}

// ListSessionsNeedingSamples returns imported sessions that have no power
// trace yet, oldest first, capped at limit.
func (s *Store) ListSessionsNeedingSamples(limit int) ([]Session, error) {
	return s.querySessions(`
		SELECT id, date, duration_minutes, average_power, rpe, style, source, external_id, has_samples
		FROM sessions
		WHERE source = 'strava' AND has_samples = 0 AND external_id IS NOT NULL
		ORDER BY date ASC LIMIT ?`, limit)
}

// CountSessions returns the total number of sessions.
func (s *Store) CountSessions() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count)
	return count, err
}

func (s *Store) querySessions(query string, args ...any) ([]Session, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var date string
	var externalID sql.NullInt64
	var hasSamples int64

	err := row.Scan(&sess.ID, &date, &sess.DurationMinutes, &sess.AveragePower,
		&sess.RPE, &sess.Style, &sess.Source, &externalID, &hasSamples)
	if err != nil {
		return nil, err
	}

	sess.Date, err = time.Parse(time.RFC3339, date)
	if err != nil {
		return nil, fmt.Errorf("parsing session date %q: %w", date, err)
	}
	sess.ExternalID = nullInt64ToPtr(externalID)
	sess.HasSamples = hasSamples == 1

	return &sess, nil
}

// SavePowerSamples saves the power trace for a session, replacing any
// existing trace, and marks the session as having samples.
func (s *Store) SavePowerSamples(sessionID int64, samples []PowerSample) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM power_samples WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting existing samples: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO power_samples (session_id, time_offset, power) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range samples {
		if _, err := stmt.Exec(sessionID, p.TimeOffset, p.Power); err != nil {
			return fmt.Errorf("inserting power sample: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE sessions SET has_samples = 1 WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("marking session sampled: %w", err)
	}

	return tx.Commit()
}

// GetPowerSamples retrieves a session's power trace ordered by time offset.
func (s *Store) GetPowerSamples(sessionID int64) ([]PowerSample, error) {
	rows, err := s.db.Query(`
		SELECT session_id, time_offset, power FROM power_samples
		WHERE session_id = ? ORDER BY time_offset`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []PowerSample
	for rows.Next() {
		var p PowerSample
		if err := rows.Scan(&p.SessionID, &p.TimeOffset, &p.Power); err != nil {
			return nil, err
		}
		samples = append(samples, p)
	}
	return samples, rows.Err()
}

// --- Conversion Helpers ---

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func ptrInt64ToNullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func nullInt64ToPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}
