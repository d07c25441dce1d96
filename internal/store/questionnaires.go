package store

import (
	"fmt"
	"time"
)

const dayFormat = "2006-01-02"

// SaveQuestionnaire stores a day's wellness check-in, replacing any
// previously recorded scores for that day.
func (s *Store) SaveQuestionnaire(resp *QuestionnaireResponse) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	day := resp.Date.Format(dayFormat)
	if _, err := tx.Exec(`DELETE FROM questionnaires WHERE date = ?`, day); err != nil {
		return fmt.Errorf("clearing existing check-in: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO questionnaires (date, question_id, score) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for id, score := range resp.Scores {
		if _, err := stmt.Exec(day, id, score); err != nil {
			return fmt.Errorf("inserting score %q: %w", id, err)
		}
	}

	return tx.Commit()
}

// GetQuestionnaire retrieves the check-in for a day.
// Returns nil without error when no check-in exists for that day.
func (s *Store) GetQuestionnaire(day time.Time) (*QuestionnaireResponse, error) {
	rows, err := s.db.Query(`SELECT question_id, score FROM questionnaires WHERE date = ?`,
		day.Format(dayFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[string]int)
	for rows.Next() {
		var id string
		var score int
		if err := rows.Scan(&id, &score); err != nil {
			return nil, err
		}
		scores[id] = score
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}

	parsed, err := time.Parse(dayFormat, day.Format(dayFormat))
	if err != nil {
		return nil, err
	}
	return &QuestionnaireResponse{Date: parsed, Scores: scores}, nil
}

// ListQuestionnairesUpTo returns all check-ins dated on or before the given
// day, ordered by date ascending.
func (s *Store) ListQuestionnairesUpTo(day time.Time) ([]QuestionnaireResponse, error) {
	rows, err := s.db.Query(`
		SELECT date, question_id, score FROM questionnaires
		WHERE date <= ? ORDER BY date ASC`, day.Format(dayFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDay := make(map[string]map[string]int)
	var order []string
	for rows.Next() {
		var date, id string
		var score int
		if err := rows.Scan(&date, &id, &score); err != nil {
			return nil, err
		}
		if _, ok := byDay[date]; !ok {
			byDay[date] = make(map[string]int)
			order = append(order, date)
		}
		byDay[date][id] = score
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	responses := make([]QuestionnaireResponse, 0, len(order))
	for _, date := range order {
		parsed, err := time.Parse(dayFormat, date)
		if err != nil {
			return nil, fmt.Errorf("parsing check-in date %q: %w", date, err)
		}
		responses = append(responses, QuestionnaireResponse{Date: parsed, Scores: byDay[date]})
	}
	return responses, nil
}
