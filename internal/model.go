package internal

import "time"

type User struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Name  string `json:"name"`
}

// SessionKind classifies a timer session.
type SessionKind string

const (
	KindWork        SessionKind = "work"
	KindShortBreak  SessionKind = "short_break"
	KindLongBreak   SessionKind = "long_break"
	KindCustomFocus SessionKind = "custom_focus"
)

func (k SessionKind) Valid() bool {
	switch k {
	case KindWork, KindShortBreak, KindLongBreak, KindCustomFocus:
		return true
	}
	return false
}

// Session is one timer instance. EndedAt == nil means the session is active;
// at most one active session exists per user (enforced by the session store).
type Session struct {
	ID                 string      `json:"id"`
	UserID             string      `json:"user_id"`
	Kind               SessionKind `json:"kind"`
	StartedAt          time.Time   `json:"started_at"`
	EndedAt            *time.Time  `json:"ended_at,omitempty"`
	PlannedSeconds     int         `json:"planned_seconds"`
	PausedSeconds      int         `json:"paused_seconds"`
	Completed          bool        `json:"completed"`
	Interrupted        bool        `json:"interrupted"`
	Task               string      `json:"task,omitempty"`
	Notes              string      `json:"notes,omitempty"`
	AmbientSound       string      `json:"ambient_sound,omitempty"`
	ProductivityRating *int        `json:"productivity_rating,omitempty"`
	InterruptionReason string      `json:"interruption_reason,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// ActualSeconds derives the worked duration at time now: wall-clock elapsed
// since start minus accumulated pause time, floored to whole seconds and
// clamped to zero. It is never stored while the session is active.
func (s *Session) ActualSeconds(now time.Time) int {
	elapsed := int(now.Sub(s.StartedAt).Seconds()) - s.PausedSeconds
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

type WeatherCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type WeatherSnapshot struct {
	Temperature   float64          `json:"temperature"`
	FeelsLike     float64          `json:"feels_like"`
	Humidity      int              `json:"humidity"`
	Pressure      int              `json:"pressure"`
	WindSpeed     float64          `json:"wind_speed"`
	WindDirection int              `json:"wind_direction"`
	VisibilityKm  float64          `json:"visibility_km"`
	Condition     WeatherCondition `json:"condition"`
	ObservedAt    time.Time        `json:"observed_at"`
}

type WeatherLocation struct {
	City    string  `json:"city,omitempty"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// WeatherCacheEntry is one cached snapshot per rounded-coordinate key.
// Entries are replaced wholesale on refresh, never merged.
type WeatherCacheEntry struct {
	LocationKey string          `json:"location_key"`
	Location    WeatherLocation `json:"location"`
	Current     WeatherSnapshot `json:"current"`
	Source      string          `json:"source"`
	CachedAt    time.Time       `json:"cached_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Fresh reports whether the entry is still usable at time now. Expired
// entries are treated as absent by the cache manager.
func (e *WeatherCacheEntry) Fresh(now time.Time) bool {
	return e.ExpiresAt.After(now)
}

// UserStats holds the cumulative completion counters for one user.
type UserStats struct {
	UserID             string     `json:"user_id"`
	TotalFocusMinutes  int        `json:"total_focus_minutes"`
	CompletedPomodoros int        `json:"completed_pomodoros"`
	TotalSessions      int        `json:"total_sessions"`
	CurrentStreak      int        `json:"current_streak"`
	LongestStreak      int        `json:"longest_streak"`
	LastSessionAt      *time.Time `json:"last_session_at,omitempty"`
}
