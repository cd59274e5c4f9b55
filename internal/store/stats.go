package store

import (
	"fmt"

	"github.com/mytalk-labs/mytalk/pkg/core"
)

// AddScriptCreated increments the created counter for a day.
func (s *SQLStore) AddScriptCreated(date string) error {
	return s.bumpStat(date, "scripts_created", 1)
}

// AddScriptPracticed increments the practiced counter for a day.
func (s *SQLStore) AddScriptPracticed(date string) error {
	return s.bumpStat(date, "scripts_practiced", 1)
}

// AddStudyMinutes adds study time to a day.
func (s *SQLStore) AddStudyMinutes(date string, minutes int) error {
	if minutes <= 0 {
		return nil
	}
	return s.bumpStat(date, "study_minutes", minutes)
}

// bumpStat upserts one counter column of a daily row. The column name
// comes from a fixed set above, never from user input.
func (s *SQLStore) bumpStat(date, column string, delta int) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if date == "" {
		return fmt.Errorf("date is required")
	}

	query := fmt.Sprintf(
		`INSERT INTO stats_daily (date, %[1]s) VALUES (?, ?)
		 ON CONFLICT (date) DO UPDATE SET %[1]s = stats_daily.%[1]s + ?`,
		column,
	)
	_, err := s.db.Exec(s.q(query), date, delta, delta)
	if err != nil {
		return fmt.Errorf("failed to update daily stats: %w", err)
	}
	return nil
}

// StatsRange retrieves daily stats between two dates inclusive, oldest
// first. Dates are formatted YYYY-MM-DD.
func (s *SQLStore) StatsRange(from, to string) ([]*core.DailyStat, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(s.q(
		`SELECT date, scripts_created, scripts_practiced, study_minutes
		 FROM stats_daily WHERE date >= ? AND date <= ? ORDER BY date`),
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	defer rows.Close()

	var stats []*core.DailyStat
	for rows.Next() {
		stat := &core.DailyStat{}
		err := rows.Scan(&stat.Date, &stat.ScriptsCreated, &stat.ScriptsPracticed, &stat.StudyMinutes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}
