package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/keshav323/digital-clock-application/internal"
)

// SQLiteStorage is the embedded single-node backend. SQLite supports only one
// writer at a time; MaxOpenConns(1) plus WAL mode avoids "database is locked"
// errors under concurrent requests.
type SQLiteStorage struct {
	db     *sql.DB
	logger internal.Logger
}

func NewSQLiteStorage(path string, logger internal.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logger.Errorf("failed to open sqlite database: %v", err)
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		logger.Errorf("failed to set sqlite pragmas: %v", err)
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		logger.Errorf("failed to initialize sqlite tables: %v", err)
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP,
			planned_seconds INTEGER NOT NULL,
			paused_seconds INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			interrupted INTEGER NOT NULL DEFAULT 0,
			task TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			ambient_sound TEXT NOT NULL DEFAULT '',
			productivity_rating INTEGER,
			interruption_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_active_per_user
			ON sessions (user_id) WHERE ended_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS sessions_user_started
			ON sessions (user_id, started_at DESC)`,
		`CREATE TABLE IF NOT EXISTS user_stats (
			user_id TEXT PRIMARY KEY,
			total_focus_minutes INTEGER NOT NULL DEFAULT 0,
			completed_pomodoros INTEGER NOT NULL DEFAULT 0,
			total_sessions INTEGER NOT NULL DEFAULT 0,
			current_streak INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			last_session_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS weather_cache (
			location_key TEXT PRIMARY KEY,
			city TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			temperature REAL NOT NULL,
			feels_like REAL NOT NULL,
			humidity INTEGER NOT NULL,
			pressure INTEGER NOT NULL,
			wind_speed REAL NOT NULL,
			wind_direction INTEGER NOT NULL,
			visibility_km REAL NOT NULL,
			condition_main TEXT NOT NULL DEFAULT '',
			condition_description TEXT NOT NULL DEFAULT '',
			condition_icon TEXT NOT NULL DEFAULT '',
			observed_at TIMESTAMP NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			cached_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// --- SessionRepository ---

const sqliteSessionColumns = `id, user_id, kind, started_at, ended_at, planned_seconds, paused_seconds,
	completed, interrupted, task, notes, ambient_sound, productivity_rating, interruption_reason, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (*internal.Session, error) {
	var (
		s       internal.Session
		endedAt sql.NullTime
		rating  sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Kind, &s.StartedAt, &endedAt, &s.PlannedSeconds,
		&s.PausedSeconds, &s.Completed, &s.Interrupted, &s.Task, &s.Notes, &s.AmbientSound,
		&rating, &s.InterruptionReason, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	if rating.Valid {
		r := int(rating.Int64)
		s.ProductivityRating = &r
	}
	return &s, nil
}

func (s *SQLiteStorage) FindActive(ctx context.Context, userID string) (*internal.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM sessions WHERE user_id = ? AND ended_at IS NULL`, userID)
	sess, err := scanSQLiteSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.Errorf("failed to query active session: %v", err)
		return nil, internal.NewStoreError("find active session", err)
	}
	return sess, nil
}

func (s *SQLiteStorage) Create(ctx context.Context, sess *internal.Session) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions (`+sqliteSessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Kind, sess.StartedAt, sess.EndedAt, sess.PlannedSeconds,
		sess.PausedSeconds, sess.Completed, sess.Interrupted, sess.Task, sess.Notes,
		sess.AmbientSound, ratingValue(sess.ProductivityRating), sess.InterruptionReason, sess.CreatedAt)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return internal.ErrSessionConflict
		}
		s.logger.Errorf("failed to insert session: %v", err)
		return internal.NewStoreError("create session", err)
	}
	return nil
}

func ratingValue(r *int) any {
	if r == nil {
		return nil
	}
	return *r
}

func (s *SQLiteStorage) Update(ctx context.Context, sess *internal.Session) error {
	// Conditional write: a session that already ended matches zero rows, so
	// the terminal transition commits at most once.
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET kind = ?, started_at = ?, ended_at = ?,
		planned_seconds = ?, paused_seconds = ?, completed = ?, interrupted = ?, task = ?,
		notes = ?, ambient_sound = ?, productivity_rating = ?, interruption_reason = ?
		WHERE id = ? AND ended_at IS NULL`,
		sess.Kind, sess.StartedAt, sess.EndedAt, sess.PlannedSeconds, sess.PausedSeconds,
		sess.Completed, sess.Interrupted, sess.Task, sess.Notes, sess.AmbientSound,
		ratingValue(sess.ProductivityRating), sess.InterruptionReason, sess.ID)
	if err != nil {
		s.logger.Errorf("failed to update session: %v", err)
		return internal.NewStoreError("update session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internal.NewStoreError("update session", err)
	}
	if n == 0 {
		return internal.ErrNoActiveSession
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		s.logger.Errorf("failed to delete session: %v", err)
		return internal.NewStoreError("delete session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internal.NewStoreError("delete session", err)
	}
	if n == 0 {
		return internal.NewStoreError("delete session", ErrSessionNotFound)
	}
	return nil
}

func (s *SQLiteStorage) GetByID(ctx context.Context, id string) (*internal.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteSessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSQLiteSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.NewStoreError("get session", ErrSessionNotFound)
		}
		s.logger.Errorf("failed to query session: %v", err)
		return nil, internal.NewStoreError("get session", err)
	}
	return sess, nil
}

func (s *SQLiteStorage) Query(ctx context.Context, userID string, f SessionFilter) ([]internal.Session, int, error) {
	where := `WHERE user_id = ?`
	args := []any{userID}
	if f.Kind != nil {
		where += ` AND kind = ?`
		args = append(args, *f.Kind)
	}
	if f.Completed != nil {
		where += ` AND completed = ?`
		args = append(args, *f.Completed)
	}
	if f.From != nil {
		where += ` AND started_at >= ?`
		args = append(args, *f.From)
	}
	if f.To != nil {
		where += ` AND started_at <= ?`
		args = append(args, *f.To)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions `+where, args...).Scan(&total); err != nil {
		s.logger.Errorf("failed to count sessions: %v", err)
		return nil, 0, internal.NewStoreError("count sessions", err)
	}

	query := `SELECT ` + sqliteSessionColumns + ` FROM sessions ` + where + ` ORDER BY started_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	} else if f.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Errorf("failed to query sessions: %v", err)
		return nil, 0, internal.NewStoreError("query sessions", err)
	}
	defer rows.Close()

	var sessions []internal.Session
	for rows.Next() {
		sess, err := scanSQLiteSession(rows)
		if err != nil {
			s.logger.Errorf("failed to scan session: %v", err)
			return nil, 0, internal.NewStoreError("scan session", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, internal.NewStoreError("query sessions", err)
	}
	return sessions, total, nil
}

// --- StatsRepository ---

func (s *SQLiteStorage) Get(ctx context.Context, userID string) (*internal.UserStats, error) {
	st, err := s.getStats(ctx, s.db.QueryRowContext, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &internal.UserStats{UserID: userID}, nil
		}
		s.logger.Errorf("failed to query stats: %v", err)
		return nil, internal.NewStoreError("get stats", err)
	}
	return st, nil
}

type queryRowFunc func(ctx context.Context, query string, args ...any) *sql.Row

func (s *SQLiteStorage) getStats(ctx context.Context, queryRow queryRowFunc, userID string) (*internal.UserStats, error) {
	row := queryRow(ctx, `SELECT user_id, total_focus_minutes, completed_pomodoros,
		total_sessions, current_streak, longest_streak, last_session_at
		FROM user_stats WHERE user_id = ?`, userID)
	var (
		st   internal.UserStats
		last sql.NullTime
	)
	err := row.Scan(&st.UserID, &st.TotalFocusMinutes, &st.CompletedPomodoros, &st.TotalSessions,
		&st.CurrentStreak, &st.LongestStreak, &last)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		st.LastSessionAt = &t
	}
	return &st, nil
}

func (s *SQLiteStorage) Mutate(ctx context.Context, userID string, fn func(*internal.UserStats)) (*internal.UserStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, internal.NewStoreError("begin stats tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO user_stats (user_id) VALUES (?)
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		s.logger.Errorf("failed to seed stats row: %v", err)
		return nil, internal.NewStoreError("seed stats", err)
	}
	st, err := s.getStats(ctx, tx.QueryRowContext, userID)
	if err != nil {
		s.logger.Errorf("failed to read stats row: %v", err)
		return nil, internal.NewStoreError("read stats", err)
	}

	fn(st)

	if _, err := tx.ExecContext(ctx, `UPDATE user_stats SET total_focus_minutes = ?,
		completed_pomodoros = ?, total_sessions = ?, current_streak = ?,
		longest_streak = ?, last_session_at = ? WHERE user_id = ?`,
		st.TotalFocusMinutes, st.CompletedPomodoros, st.TotalSessions, st.CurrentStreak,
		st.LongestStreak, st.LastSessionAt, st.UserID); err != nil {
		s.logger.Errorf("failed to update stats: %v", err)
		return nil, internal.NewStoreError("update stats", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, internal.NewStoreError("commit stats tx", err)
	}
	return st, nil
}

// --- WeatherCacheRepository ---

type sqliteWeatherRepo struct {
	s *SQLiteStorage
}

func (r sqliteWeatherRepo) Get(ctx context.Context, key string) (*internal.WeatherCacheEntry, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT location_key, city, country, lat, lon, temperature,
		feels_like, humidity, pressure, wind_speed, wind_direction, visibility_km,
		condition_main, condition_description, condition_icon, observed_at, source, cached_at, expires_at
		FROM weather_cache WHERE location_key = ?`, key)
	var e internal.WeatherCacheEntry
	err := row.Scan(&e.LocationKey, &e.Location.City, &e.Location.Country, &e.Location.Lat,
		&e.Location.Lon, &e.Current.Temperature, &e.Current.FeelsLike, &e.Current.Humidity,
		&e.Current.Pressure, &e.Current.WindSpeed, &e.Current.WindDirection, &e.Current.VisibilityKm,
		&e.Current.Condition.Main, &e.Current.Condition.Description, &e.Current.Condition.Icon,
		&e.Current.ObservedAt, &e.Source, &e.CachedAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.s.logger.Errorf("failed to query weather cache: %v", err)
		return nil, internal.NewStoreError("get weather entry", err)
	}
	return &e, nil
}

func (r sqliteWeatherRepo) Put(ctx context.Context, e *internal.WeatherCacheEntry) error {
	_, err := r.s.db.ExecContext(ctx, `INSERT INTO weather_cache (location_key, city, country, lat, lon,
		temperature, feels_like, humidity, pressure, wind_speed, wind_direction, visibility_km,
		condition_main, condition_description, condition_icon, observed_at, source, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (location_key) DO UPDATE SET
			city = excluded.city, country = excluded.country, lat = excluded.lat, lon = excluded.lon,
			temperature = excluded.temperature, feels_like = excluded.feels_like,
			humidity = excluded.humidity, pressure = excluded.pressure,
			wind_speed = excluded.wind_speed, wind_direction = excluded.wind_direction,
			visibility_km = excluded.visibility_km, condition_main = excluded.condition_main,
			condition_description = excluded.condition_description, condition_icon = excluded.condition_icon,
			observed_at = excluded.observed_at, source = excluded.source,
			cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		e.LocationKey, e.Location.City, e.Location.Country, e.Location.Lat, e.Location.Lon,
		e.Current.Temperature, e.Current.FeelsLike, e.Current.Humidity, e.Current.Pressure,
		e.Current.WindSpeed, e.Current.WindDirection, e.Current.VisibilityKm,
		e.Current.Condition.Main, e.Current.Condition.Description, e.Current.Condition.Icon,
		e.Current.ObservedAt, e.Source, e.CachedAt, e.ExpiresAt)
	if err != nil {
		r.s.logger.Errorf("failed to upsert weather cache: %v", err)
		return internal.NewStoreError("put weather entry", err)
	}
	return nil
}

func (r sqliteWeatherRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM weather_cache WHERE expires_at <= ?`, now)
	if err != nil {
		r.s.logger.Errorf("failed to sweep weather cache: %v", err)
		return 0, internal.NewStoreError("sweep weather cache", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, internal.NewStoreError("sweep weather cache", err)
	}
	return int(n), nil
}

// --- Compile-time assertions ---
var _ SessionRepository = (*SQLiteStorage)(nil)
var _ StatsRepository = (*SQLiteStorage)(nil)
var _ WeatherCacheRepository = sqliteWeatherRepo{}
