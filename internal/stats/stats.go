// Package stats records daily study activity and aggregates it for
// display. Days with no activity appear as zero rows so ranges are
// always continuous.
package stats

import (
	"fmt"
	"time"

	"github.com/mytalk-labs/mytalk/pkg/core"
)

// DateFormat is the canonical day key.
const DateFormat = "2006-01-02"

// Recorder tracks study activity in the library store.
type Recorder struct {
	store core.Store
	now   func() time.Time
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store core.Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

func (r *Recorder) today() string {
	return r.now().UTC().Format(DateFormat)
}

// ScriptCreated counts one created script for today.
func (r *Recorder) ScriptCreated() error {
	return r.store.AddScriptCreated(r.today())
}

// ScriptPracticed counts one practice session for today.
func (r *Recorder) ScriptPracticed() error {
	return r.store.AddScriptPracticed(r.today())
}

// AddStudyMinutes adds study time to today.
func (r *Recorder) AddStudyMinutes(minutes int) error {
	return r.store.AddStudyMinutes(r.today(), minutes)
}

// Today returns today's stats, zeroed when nothing happened yet.
func (r *Recorder) Today() (*core.DailyStat, error) {
	summary, err := r.Range(1)
	if err != nil {
		return nil, err
	}
	return summary.Days[0], nil
}

// Week summarizes the last 7 days including today.
func (r *Recorder) Week() (*core.StatsSummary, error) {
	return r.Range(7)
}

// Month summarizes the last 30 days including today.
func (r *Recorder) Month() (*core.StatsSummary, error) {
	return r.Range(30)
}

// Range summarizes the last n days including today, oldest day first.
func (r *Recorder) Range(days int) (*core.StatsSummary, error) {
	if days <= 0 {
		return nil, fmt.Errorf("range must cover at least one day, got %d", days)
	}

	end := r.now().UTC()
	start := end.AddDate(0, 0, -(days - 1))

	rows, err := r.store.StatsRange(start.Format(DateFormat), end.Format(DateFormat))
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*core.DailyStat, len(rows))
	for _, row := range rows {
		byDate[row.Date] = row
	}

	summary := &core.StatsSummary{Days: make([]*core.DailyStat, 0, days)}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format(DateFormat)
		row, ok := byDate[date]
		if !ok {
			row = &core.DailyStat{Date: date}
		}
		summary.Days = append(summary.Days, row)
		summary.ScriptsCreated += row.ScriptsCreated
		summary.ScriptsPracticed += row.ScriptsPracticed
		summary.StudyMinutes += row.StudyMinutes
	}
	return summary, nil
}

// Streak counts consecutive days with any activity, ending today or
// yesterday. Practicing today is not required to keep yesterday's
// streak alive.
func (r *Recorder) Streak() (int, error) {
	// A year of history is plenty for a streak display.
	summary, err := r.Range(366)
	if err != nil {
		return 0, err
	}

	days := summary.Days
	streak := 0
	i := len(days) - 1
	if !active(days[i]) {
		i--
	}
	for ; i >= 0; i-- {
		if !active(days[i]) {
			break
		}
		streak++
	}
	return streak, nil
}

func active(d *core.DailyStat) bool {
	return d.ScriptsCreated > 0 || d.ScriptsPracticed > 0 || d.StudyMinutes > 0
}
