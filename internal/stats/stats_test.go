package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mytalk-labs/mytalk/internal/store"
	"github.com/mytalk-labs/mytalk/pkg/core"
)

func newTestRecorder(t *testing.T, now time.Time) (*Recorder, core.Store) {
	t.Helper()
	st := store.New(store.DriverSQLite, ":memory:")
	require.NoError(t, st.Open())
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate())

	r := NewRecorder(st)
	r.now = func() time.Time { return now }
	return r, st
}

func TestRecorderCountsToday(t *testing.T) {
	now := time.Date(2026, 1, 10, 15, 30, 0, 0, time.UTC)
	r, _ := newTestRecorder(t, now)

	require.NoError(t, r.ScriptCreated())
	require.NoError(t, r.ScriptCreated())
	require.NoError(t, r.ScriptPracticed())
	require.NoError(t, r.AddStudyMinutes(25))

	today, err := r.Today()
	require.NoError(t, err)
	assert.Equal(t, "2026-01-10", today.Date)
	assert.Equal(t, 2, today.ScriptsCreated)
	assert.Equal(t, 1, today.ScriptsPracticed)
	assert.Equal(t, 25, today.StudyMinutes)
}

func TestTodayEmpty(t *testing.T) {
	now := time.Date(2026, 1, 10, 15, 30, 0, 0, time.UTC)
	r, _ := newTestRecorder(t, now)

	today, err := r.Today()
	require.NoError(t, err)
	assert.Equal(t, "2026-01-10", today.Date)
	assert.Zero(t, today.ScriptsCreated)
}

func TestWeekFillsMissingDays(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	r, st := newTestRecorder(t, now)

	require.NoError(t, st.AddStudyMinutes("2026-01-04", 10))
	require.NoError(t, st.AddStudyMinutes("2026-01-08", 20))
	// Outside the window, must not be counted.
	require.NoError(t, st.AddStudyMinutes("2026-01-03", 99))

	week, err := r.Week()
	require.NoError(t, err)
	require.Len(t, week.Days, 7)
	assert.Equal(t, "2026-01-04", week.Days[0].Date)
	assert.Equal(t, "2026-01-10", week.Days[6].Date)
	assert.Equal(t, 30, week.StudyMinutes)

	assert.Equal(t, 10, week.Days[0].StudyMinutes)
	assert.Zero(t, week.Days[1].StudyMinutes, "gap day should be zero-filled")
	assert.Equal(t, 20, week.Days[4].StudyMinutes)
}

func TestMonthTotals(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	r, st := newTestRecorder(t, now)

	require.NoError(t, st.AddScriptCreated("2026-01-02"))
	require.NoError(t, st.AddScriptCreated("2026-01-15"))
	require.NoError(t, st.AddScriptPracticed("2026-01-31"))

	month, err := r.Month()
	require.NoError(t, err)
	require.Len(t, month.Days, 30)
	assert.Equal(t, 2, month.ScriptsCreated)
	assert.Equal(t, 1, month.ScriptsPracticed)
}

func TestRangeRejectsNonPositive(t *testing.T) {
	r, _ := newTestRecorder(t, time.Now())
	_, err := r.Range(0)
	assert.Error(t, err)
}

func TestStreak(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	t.Run("active today", func(t *testing.T) {
		r, st := newTestRecorder(t, now)
		require.NoError(t, st.AddStudyMinutes("2026-01-08", 5))
		require.NoError(t, st.AddStudyMinutes("2026-01-09", 5))
		require.NoError(t, st.AddStudyMinutes("2026-01-10", 5))

		streak, err := r.Streak()
		require.NoError(t, err)
		assert.Equal(t, 3, streak)
	})

	t.Run("nothing yet today keeps yesterday's streak", func(t *testing.T) {
		r, st := newTestRecorder(t, now)
		require.NoError(t, st.AddStudyMinutes("2026-01-08", 5))
		require.NoError(t, st.AddStudyMinutes("2026-01-09", 5))

		streak, err := r.Streak()
		require.NoError(t, err)
		assert.Equal(t, 2, streak)
	})

	t.Run("broken streak", func(t *testing.T) {
		r, st := newTestRecorder(t, now)
		require.NoError(t, st.AddStudyMinutes("2026-01-06", 5))
		require.NoError(t, st.AddStudyMinutes("2026-01-10", 5))

		streak, err := r.Streak()
		require.NoError(t, err)
		assert.Equal(t, 1, streak)
	})

	t.Run("no activity", func(t *testing.T) {
		r, _ := newTestRecorder(t, now)
		streak, err := r.Streak()
		require.NoError(t, err)
		assert.Zero(t, streak)
	})
}
