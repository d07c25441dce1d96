package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Authentication (singleton row)
		`CREATE TABLE IF NOT EXISTS auth (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			athlete_id INTEGER NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Training sessions
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			date TEXT NOT NULL,
			duration_minutes REAL NOT NULL,
			average_power REAL NOT NULL,
			rpe REAL NOT NULL,
			style TEXT NOT NULL DEFAULT 'steady',
			source TEXT NOT NULL DEFAULT 'manual',
			external_id INTEGER,
			has_samples INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_external ON sessions(external_id) WHERE external_id IS NOT NULL`,

		// High-resolution power traces (1 Hz)
		`CREATE TABLE IF NOT EXISTS power_samples (
			session_id INTEGER NOT NULL,
			time_offset INTEGER NOT NULL,
			power REAL NOT NULL,
			PRIMARY KEY (session_id, time_offset),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,

		// Daily wellness check-ins, one row per question per day
		`CREATE TABLE IF NOT EXISTS questionnaires (
			date TEXT NOT NULL,
			question_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			PRIMARY KEY (date, question_id)
		)`,

		// Chronic fatigue model state (singleton row)
		`CREATE TABLE IF NOT EXISTS model_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			s_metabolic REAL NOT NULL,
			s_structural REAL NOT NULL,
			carryover_readiness REAL NOT NULL DEFAULT 0,
			carryover_fatigue REAL NOT NULL DEFAULT 0,
			last_advanced TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Critical power estimate (singleton row)
		`CREATE TABLE IF NOT EXISTS cp_estimate (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			cp REAL NOT NULL,
			w_prime REAL NOT NULL,
			confidence REAL NOT NULL,
			data_points INTEGER NOT NULL,
			decay_applied INTEGER NOT NULL DEFAULT 0,
			last_updated TEXT NOT NULL
		)`,

		// Rolling RPE mismatch history
		`CREATE TABLE IF NOT EXISTS rpe_mismatches (
			id INTEGER PRIMARY KEY,
			session_id INTEGER NOT NULL,
			actual REAL NOT NULL,
			predicted REAL NOT NULL,
			direction TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_rpe_mismatches_created ON rpe_mismatches(created_at)`,

		// Cached Monte Carlo runs, one per (template, week count)
		`CREATE TABLE IF NOT EXISTS simulation_runs (
			template_id TEXT NOT NULL,
			week_count INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			valid_iterations INTEGER NOT NULL,
			degraded INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			PRIMARY KEY (template_id, week_count)
		)`,

		// Percentile cut points per week and metric of a cached run
		`CREATE TABLE IF NOT EXISTS simulation_bands (
			template_id TEXT NOT NULL,
			week_count INTEGER NOT NULL,
			week INTEGER NOT NULL,
			metric TEXT NOT NULL,
			min_value REAL NOT NULL,
			p15 REAL NOT NULL,
			p25 REAL NOT NULL,
			p35 REAL NOT NULL,
			median REAL NOT NULL,
			p65 REAL NOT NULL,
			p75 REAL NOT NULL,
			p85 REAL NOT NULL,
			max_value REAL NOT NULL,
			PRIMARY KEY (template_id, week_count, week, metric),
			FOREIGN KEY (template_id, week_count) REFERENCES simulation_runs(template_id, week_count) ON DELETE CASCADE
		)`,

		// Sync State (key-value store for sync tracking)
		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
