package service

import (
	"context"
	"time"

	"github.com/keshav323/digital-clock-application/internal"
	"github.com/keshav323/digital-clock-application/internal/clock"
	"github.com/keshav323/digital-clock-application/internal/storage"
)

// StatsAggregator folds completed work sessions into per-user counters and
// computes periodic rollups on demand from session records, so the counters
// and the rollups cannot drift apart.
type StatsAggregator struct {
	stats    storage.StatsRepository
	sessions storage.SessionRepository
	clock    clock.Clock
	logger   internal.Logger
}

func NewStatsAggregator(stats storage.StatsRepository, sessions storage.SessionRepository, clk clock.Clock, logger internal.Logger) *StatsAggregator {
	return &StatsAggregator{stats: stats, sessions: sessions, clock: clk, logger: logger}
}

// RecordCompletion applies one completed session to the user's counters. Every
// completion counts toward TotalSessions; pomodoro count, focus time, and the
// streak move only for work sessions. The store serializes the
// read-modify-write per user.
func (a *StatsAggregator) RecordCompletion(ctx context.Context, userID string, actualSeconds int, work bool) (*internal.UserStats, error) {
	now := a.clock.Now()
	st, err := a.stats.Mutate(ctx, userID, func(st *internal.UserStats) {
		applyCompletion(st, actualSeconds, now, work)
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debugf("stats updated for user %s: %d completed, streak %d", userID, st.CompletedPomodoros, st.CurrentStreak)
	return st, nil
}

// applyCompletion is the pure fold: counters, then the calendar-day streak.
// Days are compared in UTC. Same day leaves the streak unchanged, the next
// day extends it, any gap resets it to 1.
func applyCompletion(st *internal.UserStats, actualSeconds int, now time.Time, work bool) {
	st.TotalSessions++
	if !work {
		return
	}
	st.CompletedPomodoros++
	st.TotalFocusMinutes += actualSeconds / 60

	switch {
	case st.LastSessionAt == nil:
		st.CurrentStreak = 1
	case daysBetween(*st.LastSessionAt, now) == 0:
		if st.CurrentStreak == 0 {
			st.CurrentStreak = 1
		}
	case daysBetween(*st.LastSessionAt, now) == 1:
		st.CurrentStreak++
	default:
		st.CurrentStreak = 1
	}
	if st.CurrentStreak > st.LongestStreak {
		st.LongestStreak = st.CurrentStreak
	}
	t := now
	st.LastSessionAt = &t
}

// daysBetween counts whole calendar days from a to b in UTC.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start) / (24 * time.Hour))
}

// PeriodRollup summarizes completed work sessions whose StartedAt falls in a period.
type PeriodRollup struct {
	Sessions     int `json:"sessions"`
	FocusMinutes int `json:"focus_minutes"`
}

// AnalyticsRollups is the today/week/month period breakdown.
type AnalyticsRollups struct {
	Today PeriodRollup `json:"today"`
	Week  PeriodRollup `json:"week"`
	Month PeriodRollup `json:"month"`
}

// StatsSummary combines the cumulative counters with on-demand rollups.
type StatsSummary struct {
	Stats internal.UserStats `json:"stats"`
	Today PeriodRollup       `json:"today"`
	Week  PeriodRollup       `json:"week"`
	Month PeriodRollup       `json:"month"`
}

// Summary returns the user's counters plus today/week/month rollups computed
// by aggregating session records over StartedAt ranges.
func (a *StatsAggregator) Summary(ctx context.Context, userID string) (*StatsSummary, error) {
	st, err := a.stats.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	r, err := a.Rollups(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &StatsSummary{Stats: *st, Today: r.Today, Week: r.Week, Month: r.Month}, nil
}

// Rollups computes the period breakdown alone. Weeks start on Sunday, UTC.
func (a *StatsAggregator) Rollups(ctx context.Context, userID string) (*AnalyticsRollups, error) {
	now := a.clock.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	startOfWeek := startOfDay.AddDate(0, 0, -int(startOfDay.Weekday()))
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var out AnalyticsRollups
	for _, p := range []struct {
		from   time.Time
		rollup *PeriodRollup
	}{
		{startOfDay, &out.Today},
		{startOfWeek, &out.Week},
		{startOfMonth, &out.Month},
	} {
		r, err := a.rollup(ctx, userID, p.from, now)
		if err != nil {
			return nil, err
		}
		*p.rollup = r
	}
	return &out, nil
}

func (a *StatsAggregator) rollup(ctx context.Context, userID string, from, to time.Time) (PeriodRollup, error) {
	completed := true
	work := internal.KindWork
	sessions, _, err := a.sessions.Query(ctx, userID, storage.SessionFilter{
		Kind:      &work,
		Completed: &completed,
		From:      &from,
		To:        &to,
	})
	if err != nil {
		return PeriodRollup{}, err
	}
	var r PeriodRollup
	for i := range sessions {
		s := &sessions[i]
		if s.EndedAt == nil {
			continue
		}
		r.Sessions++
		r.FocusMinutes += s.ActualSeconds(*s.EndedAt) / 60
	}
	return r, nil
}
