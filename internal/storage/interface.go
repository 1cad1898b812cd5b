package storage

import (
	"context"
	"errors"
	"time"

	"github.com/keshav323/digital-clock-application/internal"
)

// ErrSessionNotFound is returned by Update/Delete/GetByID for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// SessionFilter narrows Query results. Nil fields match everything.
type SessionFilter struct {
	Kind      *internal.SessionKind
	Completed *bool
	From      *time.Time // StartedAt >= From
	To        *time.Time // StartedAt <= To
	Limit     int        // 0 means no limit
	Offset    int
}

// SessionRepository persists timer sessions. Implementations must guarantee
// at most one session per user with EndedAt unset, under concurrent Create
// calls; a violating Create fails with internal.ErrSessionConflict.
type SessionRepository interface {
	// FindActive returns the user's active session, or (nil, nil) when none exists.
	FindActive(ctx context.Context, userID string) (*internal.Session, error)
	Create(ctx context.Context, s *internal.Session) error
	// Update replaces the stored record wholesale (single-record atomic
	// write). The write applies only while the stored record is still active;
	// it fails with internal.ErrNoActiveSession when the session has already
	// ended (or the id is unknown), so a terminal transition commits at most
	// once even when two writers race.
	Update(ctx context.Context, s *internal.Session) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*internal.Session, error)
	// Query returns a page of the user's sessions ordered by StartedAt
	// descending, plus the total match count before pagination.
	Query(ctx context.Context, userID string, f SessionFilter) ([]internal.Session, int, error)
}

// StatsRepository persists per-user completion counters.
type StatsRepository interface {
	// Get returns the user's stats, or a zero-valued record when none exists.
	Get(ctx context.Context, userID string) (*internal.UserStats, error)
	// Mutate applies fn to the user's stats under a per-user atomic
	// read-modify-write and returns the stored result.
	Mutate(ctx context.Context, userID string, fn func(*internal.UserStats)) (*internal.UserStats, error)
}

// WeatherCacheRepository persists weather cache entries keyed by location.
type WeatherCacheRepository interface {
	// Get returns the entry for key, or (nil, nil) when absent. Expiry is the
	// cache manager's concern; Get returns whatever is stored.
	Get(ctx context.Context, key string) (*internal.WeatherCacheEntry, error)
	// Put upserts the entry, replacing any prior entry for the same key.
	Put(ctx context.Context, e *internal.WeatherCacheEntry) error
	// DeleteExpired removes entries with ExpiresAt <= now and reports how many.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
