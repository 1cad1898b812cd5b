package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keshav323/digital-clock-application/internal"
	"github.com/keshav323/digital-clock-application/internal/clock"
	"github.com/keshav323/digital-clock-application/internal/storage"
)

func testLogger() internal.Logger {
	return internal.NewZapLogger(zap.NewNop().Sugar())
}

func newTestEngine(start time.Time) (*TimerEngine, *clock.FakeClock, storage.Repositories) {
	logger := testLogger()
	repos := storage.NewMemoryRepositories(logger)
	clk := clock.NewFakeClock(start)
	stats := NewStatsAggregator(repos.Stats, repos.Sessions, clk, logger)
	engine := NewTimerEngine(repos.Sessions, stats, clk, logger)
	return engine, clk, repos
}

func TestStart_DurationPolicy(t *testing.T) {
	engine, _, _ := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 59})
	assert.ErrorIs(t, err, internal.ErrInvalidDuration)

	_, err = engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 3601})
	assert.ErrorIs(t, err, internal.ErrInvalidDuration)

	s, err := engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 60})
	require.NoError(t, err)
	assert.Equal(t, 60, s.PlannedSeconds)

	_, err = engine.Stop(ctx, "u1", &StopRequest{})
	require.NoError(t, err)

	s, err = engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 3600})
	require.NoError(t, err)
	assert.Equal(t, 3600, s.PlannedSeconds)
}

func TestStart_RejectsInvalidKind(t *testing.T) {
	engine, _, _ := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))

	_, err := engine.Start(context.Background(), "u1", &StartRequest{Kind: "nap", PlannedSeconds: 1500})
	assert.Error(t, err)
}

func TestStart_SecondStartConflicts(t *testing.T) {
	engine, _, _ := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 1500})
	require.NoError(t, err)

	_, err = engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindShortBreak, PlannedSeconds: 300})
	assert.ErrorIs(t, err, internal.ErrSessionConflict)

	// Other users are unaffected.
	_, err = engine.Start(ctx, "u2", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 1500})
	assert.NoError(t, err)
}

func TestStart_ConcurrentSingleWinner(t *testing.T) {
	engine, _, _ := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 1500})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, internal.ErrSessionConflict)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestPause_AccumulatesAndClamps(t *testing.T) {
	engine, clk, _ := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 1500})
	require.NoError(t, err)

	clk.Advance(60 * time.Second)
	paused, err := engine.Pause(ctx, "u1", &PauseRequest{DeltaSeconds: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, paused)

	paused, err = engine.Pause(ctx, "u1", &PauseRequest{DeltaSeconds: 15})
	require.NoError(t, err)
	assert.Equal(t, 25, paused)

	// Reported pause time can never exceed wall-clock time since start.
	paused, err = engine.Pause(ctx, "u1", &PauseRequest{DeltaSeconds: 100000})
	require.NoError(t, err)
	assert.Equal(t, 60, paused)
}

func TestPause_NoActiveSession(t *testing.T) {
	engine, _, _ := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))

	_, err := engine.Pause(context.Background(), "u1", &PauseRequest{DeltaSeconds: 10})
	assert.ErrorIs(t, err, internal.ErrNoActiveSession)
}

func TestComplete_DerivesActualSeconds(t *testing.T) {
	engine, clk, _ := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 1500, Task: "write report"})
	require.NoError(t, err)

	clk.Advance(1500 * time.Second)
	_, err = engine.Pause(ctx, "u1", &PauseRequest{DeltaSeconds: 100})
	require.NoError(t, err)

	rating := 4
	result, err := engine.Complete(ctx, "u1", &CompleteRequest{ProductivityRating: &rating, Notes: "solid block"})
	require.NoError(t, err)
	assert.Equal(t, 1400, result.ActualSeconds)
	assert.True(t, result.Session.Completed)
	assert.False(t, result.Session.Interrupted)
	require.NotNil(t, result.Session.ProductivityRating)
	assert.Equal(t, 4, *result.Session.ProductivityRating)
	assert.Equal(t, "solid block", result.Session.Notes)
	require.NotNil(t, result.Session.EndedAt)
	assert.Equal(t, clk.Now(), *result.Session.EndedAt)
}

func TestComplete_WorkSessionFeedsStats(t *testing.T) {
	engine, clk, repos := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 1500})
	require.NoError(t, err)
	clk.Advance(1500 * time.Second)
	_, err = engine.Complete(ctx, "u1", &CompleteRequest{})
	require.NoError(t, err)

	st, err := repos.Stats.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.CompletedPomodoros)
	assert.Equal(t, 25, st.TotalFocusMinutes)
	assert.Equal(t, 1, st.CurrentStreak)
}

func TestComplete_ConcurrentTerminalSingleWinner(t *testing.T) {
	engine, clk, repos := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	s, err := engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 1500})
	require.NoError(t, err)
	clk.Advance(1500 * time.Second)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = engine.Complete(ctx, "u1", &CompleteRequest{})
			} else {
				_, errs[i] = engine.Stop(ctx, "u1", &StopRequest{})
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, internal.ErrNoActiveSession)
		}
	}
	assert.Equal(t, 1, winners)

	stored, err := repos.Sessions.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EndedAt)

	// Counters reflect only the one committed outcome. A losing Complete
	// must not record work for a session that ended interrupted.
	st, err := repos.Stats.Get(ctx, "u1")
	require.NoError(t, err)
	if stored.Completed {
		assert.Equal(t, 1, st.TotalSessions)
		assert.Equal(t, 1, st.CompletedPomodoros)
	} else {
		assert.Equal(t, 0, st.TotalSessions)
		assert.Equal(t, 0, st.CompletedPomodoros)
	}
}

func TestComplete_BreakDoesNotFeedStats(t *testing.T) {
	engine, clk, repos := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindShortBreak, PlannedSeconds: 300})
	require.NoError(t, err)
	clk.Advance(300 * time.Second)
	_, err = engine.Complete(ctx, "u1", &CompleteRequest{})
	require.NoError(t, err)

	st, err := repos.Stats.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, st.CompletedPomodoros)
	assert.Equal(t, 0, st.TotalFocusMinutes)
	assert.Equal(t, 0, st.CurrentStreak)
	// Break completions still count as sessions.
	assert.Equal(t, 1, st.TotalSessions)
}

func TestStop_MarksInterrupted(t *testing.T) {
	engine, clk, repos := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 1500})
	require.NoError(t, err)

	clk.Advance(600 * time.Second)
	result, err := engine.Stop(ctx, "u1", &StopRequest{Reason: "phone call"})
	require.NoError(t, err)
	assert.Equal(t, 600, result.ActualSeconds)
	assert.False(t, result.Session.Completed)
	assert.True(t, result.Session.Interrupted)
	assert.Equal(t, "phone call", result.Session.InterruptionReason)

	// Interrupted sessions never touch the counters.
	st, err := repos.Stats.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, st.CompletedPomodoros)

	// The session is terminal now.
	_, err = engine.Stop(ctx, "u1", &StopRequest{})
	assert.ErrorIs(t, err, internal.ErrNoActiveSession)
}

func TestStop_DefaultReason(t *testing.T) {
	engine, _, _ := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 1500})
	require.NoError(t, err)

	result, err := engine.Stop(ctx, "u1", &StopRequest{})
	require.NoError(t, err)
	assert.Equal(t, "user_cancelled", result.Session.InterruptionReason)
}

func TestCurrent_DerivedProjection(t *testing.T) {
	engine, clk, _ := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := engine.Current(ctx, "u1")
	assert.ErrorIs(t, err, internal.ErrNoActiveSession)

	_, err = engine.Start(ctx, "u1", &StartRequest{Kind: internal.KindWork, PlannedSeconds: 1500})
	require.NoError(t, err)

	clk.Advance(1500 * time.Second)
	_, err = engine.Pause(ctx, "u1", &PauseRequest{DeltaSeconds: 100})
	require.NoError(t, err)

	status, err := engine.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1400, status.ElapsedSeconds)
	assert.Equal(t, 100, status.RemainingSeconds)

	// Past the plan, remaining clamps at zero.
	clk.Advance(200 * time.Second)
	status, err = engine.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1600, status.ElapsedSeconds)
	assert.Equal(t, 0, status.RemainingSeconds)
}

func TestHistory_FilterAndPaginate(t *testing.T) {
	engine, clk, _ := newTestEngine(time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	kinds := []internal.SessionKind{
		internal.KindWork, internal.KindShortBreak, internal.KindWork,
		internal.KindLongBreak, internal.KindWork,
	}
	for _, k := range kinds {
		_, err := engine.Start(ctx, "u1", &StartRequest{Kind: k, PlannedSeconds: 300})
		require.NoError(t, err)
		clk.Advance(300 * time.Second)
		_, err = engine.Complete(ctx, "u1", &CompleteRequest{})
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}

	page, err := engine.History(ctx, "u1", nil, nil, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Sessions, 5)
	// Newest first.
	for i := 1; i < len(page.Sessions); i++ {
		assert.True(t, page.Sessions[i].StartedAt.Before(page.Sessions[i-1].StartedAt))
	}

	work := internal.KindWork
	page, err = engine.History(ctx, "u1", &work, nil, nil, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Sessions, 2)

	page, err = engine.History(ctx, "u1", &work, nil, nil, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Sessions, 1)

	bogus := internal.SessionKind("nap")
	_, err = engine.History(ctx, "u1", &bogus, nil, nil, 0, 0)
	assert.Error(t, err)
}
