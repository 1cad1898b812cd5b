package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/keshav323/digital-clock-application/internal"
)

// MemoryStorage is the in-memory backend. It is the default in development
// and the store used by tests. All methods copy records in and out so callers
// only ever hold transient working copies.
type MemoryStorage struct {
	mu           sync.RWMutex
	sessions     map[string]*internal.Session   // id -> session
	userSessions map[string][]*internal.Session // userID -> sessions, StartedAt descending
	activeByUser map[string]string              // userID -> active session id
	stats        map[string]*internal.UserStats // userID -> stats
	weather      map[string]*internal.WeatherCacheEntry
	logger       internal.Logger
}

func NewMemoryStorage(logger internal.Logger) *MemoryStorage {
	return &MemoryStorage{
		sessions:     make(map[string]*internal.Session),
		userSessions: make(map[string][]*internal.Session),
		activeByUser: make(map[string]string),
		stats:        make(map[string]*internal.UserStats),
		weather:      make(map[string]*internal.WeatherCacheEntry),
		logger:       logger,
	}
}

func copySession(s *internal.Session) *internal.Session {
	c := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	if s.ProductivityRating != nil {
		r := *s.ProductivityRating
		c.ProductivityRating = &r
	}
	return &c
}

func copyStats(st *internal.UserStats) *internal.UserStats {
	c := *st
	if st.LastSessionAt != nil {
		t := *st.LastSessionAt
		c.LastSessionAt = &t
	}
	return &c
}

// --- SessionRepository ---

func (m *MemoryStorage) FindActive(ctx context.Context, userID string) (*internal.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.activeByUser[userID]
	if !ok {
		return nil, nil
	}
	return copySession(m.sessions[id]), nil
}

func (m *MemoryStorage) Create(ctx context.Context, s *internal.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Active() {
		if _, exists := m.activeByUser[s.UserID]; exists {
			return internal.ErrSessionConflict
		}
	}
	stored := copySession(s)
	m.sessions[stored.ID] = stored
	m.insertIntoIndex(stored)
	if stored.Active() {
		m.activeByUser[stored.UserID] = stored.ID
	}
	return nil
}

func (m *MemoryStorage) Update(ctx context.Context, s *internal.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.sessions[s.ID]
	if !ok || prev.EndedAt != nil {
		return internal.ErrNoActiveSession
	}
	stored := copySession(s)
	m.sessions[s.ID] = stored
	m.replaceInIndex(prev, stored)
	if stored.Active() {
		m.activeByUser[stored.UserID] = stored.ID
	} else if m.activeByUser[stored.UserID] == stored.ID {
		delete(m.activeByUser, stored.UserID)
	}
	return nil
}

func (m *MemoryStorage) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return internal.NewStoreError("delete session", ErrSessionNotFound)
	}
	delete(m.sessions, id)
	m.removeFromIndex(s)
	if m.activeByUser[s.UserID] == id {
		delete(m.activeByUser, s.UserID)
	}
	return nil
}

func (m *MemoryStorage) GetByID(ctx context.Context, id string) (*internal.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, internal.NewStoreError("get session", ErrSessionNotFound)
	}
	return copySession(s), nil
}

func (m *MemoryStorage) Query(ctx context.Context, userID string, f SessionFilter) ([]internal.Session, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*internal.Session
	for _, s := range m.userSessions[userID] {
		if f.Kind != nil && s.Kind != *f.Kind {
			continue
		}
		if f.Completed != nil && s.Completed != *f.Completed {
			continue
		}
		if f.From != nil && s.StartedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && s.StartedAt.After(*f.To) {
			continue
		}
		matched = append(matched, s)
	}

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= total {
			matched = nil
		} else {
			matched = matched[f.Offset:]
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	out := make([]internal.Session, 0, len(matched))
	for _, s := range matched {
		out = append(out, *copySession(s))
	}
	return out, total, nil
}

// index helpers keep userSessions sorted by StartedAt descending

func (m *MemoryStorage) insertIntoIndex(s *internal.Session) {
	list := append(m.userSessions[s.UserID], s)
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.After(list[j].StartedAt)
	})
	m.userSessions[s.UserID] = list
}

func (m *MemoryStorage) removeFromIndex(s *internal.Session) {
	list := m.userSessions[s.UserID]
	for i, cur := range list {
		if cur.ID == s.ID {
			m.userSessions[s.UserID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (m *MemoryStorage) replaceInIndex(prev, next *internal.Session) {
	m.removeFromIndex(prev)
	m.insertIntoIndex(next)
}

// --- StatsRepository ---

func (m *MemoryStorage) Get(ctx context.Context, userID string) (*internal.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stats[userID]
	if !ok {
		return &internal.UserStats{UserID: userID}, nil
	}
	return copyStats(st), nil
}

func (m *MemoryStorage) Mutate(ctx context.Context, userID string, fn func(*internal.UserStats)) (*internal.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stats[userID]
	if !ok {
		st = &internal.UserStats{UserID: userID}
		m.stats[userID] = st
	}
	fn(st)
	return copyStats(st), nil
}

// --- WeatherCacheRepository ---

func (m *MemoryStorage) GetWeather(ctx context.Context, key string) (*internal.WeatherCacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.weather[key]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

func (m *MemoryStorage) PutWeather(ctx context.Context, e *internal.WeatherCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *e
	m.weather[e.LocationKey] = &c
	return nil
}

func (m *MemoryStorage) DeleteExpiredWeather(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, e := range m.weather {
		if !e.ExpiresAt.After(now) {
			delete(m.weather, key)
			n++
		}
	}
	return n, nil
}

// memoryWeatherRepo adapts the Get/Put method set expected by the cache
// manager onto MemoryStorage's weather methods.
type memoryWeatherRepo struct {
	m *MemoryStorage
}

func (r memoryWeatherRepo) Get(ctx context.Context, key string) (*internal.WeatherCacheEntry, error) {
	return r.m.GetWeather(ctx, key)
}

func (r memoryWeatherRepo) Put(ctx context.Context, e *internal.WeatherCacheEntry) error {
	return r.m.PutWeather(ctx, e)
}

func (r memoryWeatherRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return r.m.DeleteExpiredWeather(ctx, now)
}

// --- Compile-time assertions ---
var _ SessionRepository = (*MemoryStorage)(nil)
var _ StatsRepository = (*MemoryStorage)(nil)
var _ WeatherCacheRepository = memoryWeatherRepo{}
