package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/keshav323/digital-clock-application/internal"
	"github.com/keshav323/digital-clock-application/internal/clock"
	"github.com/keshav323/digital-clock-application/internal/storage"
)

func TestApplyCompletion_Counters(t *testing.T) {
	var st internal.UserStats
	now := time.Date(2025, 3, 19, 9, 30, 0, 0, time.UTC)

	applyCompletion(&st, 1500, now, true)
	assert.Equal(t, 1, st.CompletedPomodoros)
	assert.Equal(t, 1, st.TotalSessions)
	assert.Equal(t, 25, st.TotalFocusMinutes)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 1, st.LongestStreak)
	require.NotNil(t, st.LastSessionAt)
	assert.Equal(t, now, *st.LastSessionAt)

	// Partial minutes floor away.
	applyCompletion(&st, 119, now.Add(time.Hour), true)
	assert.Equal(t, 26, st.TotalFocusMinutes)
}

func TestApplyCompletion_BreakCountsSessionsOnly(t *testing.T) {
	var st internal.UserStats
	now := time.Date(2025, 3, 19, 9, 30, 0, 0, time.UTC)

	applyCompletion(&st, 300, now, false)
	assert.Equal(t, 1, st.TotalSessions)
	assert.Equal(t, 0, st.CompletedPomodoros)
	assert.Equal(t, 0, st.TotalFocusMinutes)
	assert.Equal(t, 0, st.CurrentStreak)
	assert.Nil(t, st.LastSessionAt)
}

func TestApplyCompletion_Streaks(t *testing.T) {
	var st internal.UserStats
	day := func(d int) time.Time {
		return time.Date(2025, 3, d, 20, 0, 0, 0, time.UTC)
	}

	applyCompletion(&st, 1500, day(1), true)
	assert.Equal(t, 1, st.CurrentStreak)

	// Same calendar day leaves the streak alone.
	applyCompletion(&st, 1500, day(1).Add(2*time.Hour), true)
	assert.Equal(t, 1, st.CurrentStreak)

	// Consecutive days extend it.
	applyCompletion(&st, 1500, day(2), true)
	assert.Equal(t, 2, st.CurrentStreak)
	applyCompletion(&st, 1500, day(3), true)
	assert.Equal(t, 3, st.CurrentStreak)
	assert.Equal(t, 3, st.LongestStreak)

	// A gap resets the current streak but the longest survives.
	applyCompletion(&st, 1500, day(7), true)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 3, st.LongestStreak)
}

func TestApplyCompletion_StreakCrossesUTCMidnight(t *testing.T) {
	var st internal.UserStats

	applyCompletion(&st, 1500, time.Date(2025, 3, 31, 23, 50, 0, 0, time.UTC), true)
	applyCompletion(&st, 1500, time.Date(2025, 4, 1, 0, 10, 0, 0, time.UTC), true)
	assert.Equal(t, 2, st.CurrentStreak)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 19, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 0, daysBetween(a, a))
	assert.Equal(t, 1, daysBetween(a, time.Date(2025, 3, 20, 0, 1, 0, 0, time.UTC)))
	assert.Equal(t, 13, daysBetween(time.Date(2025, 2, 20, 12, 0, 0, 0, time.UTC), time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)))
}

func TestApplyCompletion_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var st internal.UserStats
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		n := rapid.IntRange(1, 50).Draw(t, "completions")
		offset := time.Duration(0)
		work := 0
		for i := 0; i < n; i++ {
			offset += time.Duration(rapid.Int64Range(0, 72*3600).Draw(t, "gap_seconds")) * time.Second
			seconds := rapid.IntRange(60, 3600).Draw(t, "actual_seconds")
			isWork := rapid.Bool().Draw(t, "is_work")
			if isWork {
				work++
			}
			applyCompletion(&st, seconds, base.Add(offset), isWork)

			if work > 0 && st.CurrentStreak < 1 {
				t.Fatalf("streak dropped below 1: %d", st.CurrentStreak)
			}
			if st.LongestStreak < st.CurrentStreak {
				t.Fatalf("longest %d < current %d", st.LongestStreak, st.CurrentStreak)
			}
		}
		if st.TotalSessions != n {
			t.Fatalf("got %d sessions, applied %d", st.TotalSessions, n)
		}
		if st.CompletedPomodoros != work {
			t.Fatalf("got %d pomodoros, applied %d work completions", st.CompletedPomodoros, work)
		}
	})
}

func TestDaysBetween_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).
			Add(time.Duration(rapid.Int64Range(0, 365*24*3600).Draw(t, "a_offset")) * time.Second)
		b := a.Add(time.Duration(rapid.Int64Range(0, 90*24*3600).Draw(t, "delta")) * time.Second)

		d := daysBetween(a, b)
		if d < 0 {
			t.Fatalf("negative day count %d for b after a", d)
		}
		if got := daysBetween(a, a); got != 0 {
			t.Fatalf("daysBetween(a, a) = %d", got)
		}
		// Whole days of distance bound the calendar-day count.
		wall := int(b.Sub(a) / (24 * time.Hour))
		if d < wall || d > wall+1 {
			t.Fatalf("daysBetween = %d, wall-clock days = %d", d, wall)
		}
	})
}

func TestSummary_Rollups(t *testing.T) {
	logger := testLogger()
	repos := storage.NewMemoryRepositories(logger)
	// Wednesday. The week rollup starts on Sunday the 16th.
	now := time.Date(2025, 3, 19, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	agg := NewStatsAggregator(repos.Stats, repos.Sessions, clk, logger)
	ctx := context.Background()

	seed := func(id string, started time.Time, seconds int, completed bool) {
		ended := started.Add(time.Duration(seconds) * time.Second)
		require.NoError(t, repos.Sessions.Create(ctx, &internal.Session{
			ID:             id,
			UserID:         "u1",
			Kind:           internal.KindWork,
			StartedAt:      started,
			EndedAt:        &ended,
			PlannedSeconds: seconds,
			Completed:      completed,
			Interrupted:    !completed,
			CreatedAt:      started,
		}))
	}

	seed("today", now.Add(-2*time.Hour), 1500, true)
	seed("this-week", time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC), 1800, true)
	seed("this-month", time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), 3000, true)
	seed("last-month", time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC), 1500, true)
	// Interrupted sessions are excluded from every rollup.
	seed("interrupted", now.Add(-1*time.Hour), 1500, false)

	summary, err := agg.Summary(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, PeriodRollup{Sessions: 1, FocusMinutes: 25}, summary.Today)
	assert.Equal(t, PeriodRollup{Sessions: 2, FocusMinutes: 55}, summary.Week)
	assert.Equal(t, PeriodRollup{Sessions: 3, FocusMinutes: 105}, summary.Month)
}

func TestSummary_EmptyUser(t *testing.T) {
	logger := testLogger()
	repos := storage.NewMemoryRepositories(logger)
	clk := clock.NewFakeClock(time.Date(2025, 3, 19, 12, 0, 0, 0, time.UTC))
	agg := NewStatsAggregator(repos.Stats, repos.Sessions, clk, logger)

	summary, err := agg.Summary(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Stats.TotalSessions)
	assert.Equal(t, PeriodRollup{}, summary.Today)
}
