package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keshav323/digital-clock-application/internal"
)

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(dsn string, logger internal.Logger) (*PostgresStorage, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	p := &PostgresStorage{pool: pool, logger: logger}
	if err := p.migrate(ctx); err != nil {
		logger.Errorf("failed to run migrations: %v", err)
		return nil, err
	}
	return p, nil
}

// migrate creates the schema. The partial unique index on (user_id) WHERE
// ended_at IS NULL is what turns a concurrent double-start into a store-level
// conflict instead of a race.
func (p *PostgresStorage) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			planned_seconds INT NOT NULL,
			paused_seconds INT NOT NULL DEFAULT 0,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			interrupted BOOLEAN NOT NULL DEFAULT FALSE,
			task TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			ambient_sound TEXT NOT NULL DEFAULT '',
			productivity_rating INT,
			interruption_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_active_per_user
			ON sessions (user_id) WHERE ended_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS sessions_user_started
			ON sessions (user_id, started_at DESC)`,
		`CREATE TABLE IF NOT EXISTS user_stats (
			user_id TEXT PRIMARY KEY,
			total_focus_minutes INT NOT NULL DEFAULT 0,
			completed_pomodoros INT NOT NULL DEFAULT 0,
			total_sessions INT NOT NULL DEFAULT 0,
			current_streak INT NOT NULL DEFAULT 0,
			longest_streak INT NOT NULL DEFAULT 0,
			last_session_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS weather_cache (
			location_key TEXT PRIMARY KEY,
			city TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			lat DOUBLE PRECISION NOT NULL,
			lon DOUBLE PRECISION NOT NULL,
			temperature DOUBLE PRECISION NOT NULL,
			feels_like DOUBLE PRECISION NOT NULL,
			humidity INT NOT NULL,
			pressure INT NOT NULL,
			wind_speed DOUBLE PRECISION NOT NULL,
			wind_direction INT NOT NULL,
			visibility_km DOUBLE PRECISION NOT NULL,
			condition_main TEXT NOT NULL DEFAULT '',
			condition_description TEXT NOT NULL DEFAULT '',
			condition_icon TEXT NOT NULL DEFAULT '',
			observed_at TIMESTAMPTZ NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			cached_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS weather_cache_expires ON weather_cache (expires_at)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- SessionRepository ---

const sessionColumns = `id, user_id, kind, started_at, ended_at, planned_seconds, paused_seconds,
	completed, interrupted, task, notes, ambient_sound, productivity_rating, interruption_reason, created_at`

func scanSession(row pgx.Row) (*internal.Session, error) {
	var s internal.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Kind, &s.StartedAt, &s.EndedAt, &s.PlannedSeconds,
		&s.PausedSeconds, &s.Completed, &s.Interrupted, &s.Task, &s.Notes, &s.AmbientSound,
		&s.ProductivityRating, &s.InterruptionReason, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStorage) FindActive(ctx context.Context, userID string) (*internal.Session, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND ended_at IS NULL`, userID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		p.logger.Errorf("failed to query active session: %v", err)
		return nil, internal.NewStoreError("find active session", err)
	}
	return s, nil
}

func (p *PostgresStorage) Create(ctx context.Context, s *internal.Session) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.UserID, s.Kind, s.StartedAt, s.EndedAt, s.PlannedSeconds, s.PausedSeconds,
		s.Completed, s.Interrupted, s.Task, s.Notes, s.AmbientSound, s.ProductivityRating,
		s.InterruptionReason, s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return internal.ErrSessionConflict
		}
		p.logger.Errorf("failed to insert session: %v", err)
		return internal.NewStoreError("create session", err)
	}
	return nil
}

func (p *PostgresStorage) Update(ctx context.Context, s *internal.Session) error {
	// The ended_at guard makes the terminal write conditional: once a session
	// is ended, a racing second writer matches zero rows instead of rewriting
	// the terminal record.
	tag, err := p.pool.Exec(ctx, `UPDATE sessions SET kind = $2, started_at = $3, ended_at = $4,
		planned_seconds = $5, paused_seconds = $6, completed = $7, interrupted = $8, task = $9,
		notes = $10, ambient_sound = $11, productivity_rating = $12, interruption_reason = $13
		WHERE id = $1 AND ended_at IS NULL`,
		s.ID, s.Kind, s.StartedAt, s.EndedAt, s.PlannedSeconds, s.PausedSeconds, s.Completed,
		s.Interrupted, s.Task, s.Notes, s.AmbientSound, s.ProductivityRating, s.InterruptionReason)
	if err != nil {
		p.logger.Errorf("failed to update session: %v", err)
		return internal.NewStoreError("update session", err)
	}
	if tag.RowsAffected() == 0 {
		return internal.ErrNoActiveSession
	}
	return nil
}

func (p *PostgresStorage) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		p.logger.Errorf("failed to delete session: %v", err)
		return internal.NewStoreError("delete session", err)
	}
	if tag.RowsAffected() == 0 {
		return internal.NewStoreError("delete session", ErrSessionNotFound)
	}
	return nil
}

func (p *PostgresStorage) GetByID(ctx context.Context, id string) (*internal.Session, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, internal.NewStoreError("get session", ErrSessionNotFound)
		}
		p.logger.Errorf("failed to query session: %v", err)
		return nil, internal.NewStoreError("get session", err)
	}
	return s, nil
}

func (p *PostgresStorage) Query(ctx context.Context, userID string, f SessionFilter) ([]internal.Session, int, error) {
	where := `WHERE user_id = $1`
	args := []any{userID}
	if f.Kind != nil {
		args = append(args, *f.Kind)
		where += ` AND kind = $` + strconv.Itoa(len(args))
	}
	if f.Completed != nil {
		args = append(args, *f.Completed)
		where += ` AND completed = $` + strconv.Itoa(len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += ` AND started_at >= $` + strconv.Itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += ` AND started_at <= $` + strconv.Itoa(len(args))
	}

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions `+where, args...).Scan(&total); err != nil {
		p.logger.Errorf("failed to count sessions: %v", err)
		return nil, 0, internal.NewStoreError("count sessions", err)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions ` + where + ` ORDER BY started_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		p.logger.Errorf("failed to query sessions: %v", err)
		return nil, 0, internal.NewStoreError("query sessions", err)
	}
	defer rows.Close()

	var sessions []internal.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			p.logger.Errorf("failed to scan session: %v", err)
			return nil, 0, internal.NewStoreError("scan session", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, total, nil
}

// --- StatsRepository ---

func (p *PostgresStorage) Get(ctx context.Context, userID string) (*internal.UserStats, error) {
	row := p.pool.QueryRow(ctx, `SELECT user_id, total_focus_minutes, completed_pomodoros,
		total_sessions, current_streak, longest_streak, last_session_at
		FROM user_stats WHERE user_id = $1`, userID)
	var st internal.UserStats
	err := row.Scan(&st.UserID, &st.TotalFocusMinutes, &st.CompletedPomodoros, &st.TotalSessions,
		&st.CurrentStreak, &st.LongestStreak, &st.LastSessionAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &internal.UserStats{UserID: userID}, nil
		}
		p.logger.Errorf("failed to query stats: %v", err)
		return nil, internal.NewStoreError("get stats", err)
	}
	return &st, nil
}

func (p *PostgresStorage) Mutate(ctx context.Context, userID string, fn func(*internal.UserStats)) (*internal.UserStats, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, internal.NewStoreError("begin stats tx", err)
	}
	defer tx.Rollback(ctx)

	// Row lock serializes concurrent completions for the same user.
	if _, err := tx.Exec(ctx, `INSERT INTO user_stats (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		p.logger.Errorf("failed to seed stats row: %v", err)
		return nil, internal.NewStoreError("seed stats", err)
	}
	row := tx.QueryRow(ctx, `SELECT user_id, total_focus_minutes, completed_pomodoros,
		total_sessions, current_streak, longest_streak, last_session_at
		FROM user_stats WHERE user_id = $1 FOR UPDATE`, userID)
	var st internal.UserStats
	if err := row.Scan(&st.UserID, &st.TotalFocusMinutes, &st.CompletedPomodoros, &st.TotalSessions,
		&st.CurrentStreak, &st.LongestStreak, &st.LastSessionAt); err != nil {
		p.logger.Errorf("failed to lock stats row: %v", err)
		return nil, internal.NewStoreError("lock stats", err)
	}

	fn(&st)

	if _, err := tx.Exec(ctx, `UPDATE user_stats SET total_focus_minutes = $2,
		completed_pomodoros = $3, total_sessions = $4, current_streak = $5,
		longest_streak = $6, last_session_at = $7 WHERE user_id = $1`,
		st.UserID, st.TotalFocusMinutes, st.CompletedPomodoros, st.TotalSessions,
		st.CurrentStreak, st.LongestStreak, st.LastSessionAt); err != nil {
		p.logger.Errorf("failed to update stats: %v", err)
		return nil, internal.NewStoreError("update stats", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, internal.NewStoreError("commit stats tx", err)
	}
	return &st, nil
}

// --- WeatherCacheRepository ---

type postgresWeatherRepo struct {
	p *PostgresStorage
}

func (r postgresWeatherRepo) Get(ctx context.Context, key string) (*internal.WeatherCacheEntry, error) {
	row := r.p.pool.QueryRow(ctx, `SELECT location_key, city, country, lat, lon, temperature,
		feels_like, humidity, pressure, wind_speed, wind_direction, visibility_km,
		condition_main, condition_description, condition_icon, observed_at, source, cached_at, expires_at
		FROM weather_cache WHERE location_key = $1`, key)
	var e internal.WeatherCacheEntry
	err := row.Scan(&e.LocationKey, &e.Location.City, &e.Location.Country, &e.Location.Lat,
		&e.Location.Lon, &e.Current.Temperature, &e.Current.FeelsLike, &e.Current.Humidity,
		&e.Current.Pressure, &e.Current.WindSpeed, &e.Current.WindDirection, &e.Current.VisibilityKm,
		&e.Current.Condition.Main, &e.Current.Condition.Description, &e.Current.Condition.Icon,
		&e.Current.ObservedAt, &e.Source, &e.CachedAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.p.logger.Errorf("failed to query weather cache: %v", err)
		return nil, internal.NewStoreError("get weather entry", err)
	}
	return &e, nil
}

func (r postgresWeatherRepo) Put(ctx context.Context, e *internal.WeatherCacheEntry) error {
	_, err := r.p.pool.Exec(ctx, `INSERT INTO weather_cache (location_key, city, country, lat, lon,
		temperature, feels_like, humidity, pressure, wind_speed, wind_direction, visibility_km,
		condition_main, condition_description, condition_icon, observed_at, source, cached_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (location_key) DO UPDATE SET
			city = EXCLUDED.city, country = EXCLUDED.country, lat = EXCLUDED.lat, lon = EXCLUDED.lon,
			temperature = EXCLUDED.temperature, feels_like = EXCLUDED.feels_like,
			humidity = EXCLUDED.humidity, pressure = EXCLUDED.pressure,
			wind_speed = EXCLUDED.wind_speed, wind_direction = EXCLUDED.wind_direction,
			visibility_km = EXCLUDED.visibility_km, condition_main = EXCLUDED.condition_main,
			condition_description = EXCLUDED.condition_description, condition_icon = EXCLUDED.condition_icon,
			observed_at = EXCLUDED.observed_at, source = EXCLUDED.source,
			cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		e.LocationKey, e.Location.City, e.Location.Country, e.Location.Lat, e.Location.Lon,
		e.Current.Temperature, e.Current.FeelsLike, e.Current.Humidity, e.Current.Pressure,
		e.Current.WindSpeed, e.Current.WindDirection, e.Current.VisibilityKm,
		e.Current.Condition.Main, e.Current.Condition.Description, e.Current.Condition.Icon,
		e.Current.ObservedAt, e.Source, e.CachedAt, e.ExpiresAt)
	if err != nil {
		r.p.logger.Errorf("failed to upsert weather cache: %v", err)
		return internal.NewStoreError("put weather entry", err)
	}
	return nil
}

func (r postgresWeatherRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.p.pool.Exec(ctx, `DELETE FROM weather_cache WHERE expires_at <= $1`, now)
	if err != nil {
		r.p.logger.Errorf("failed to sweep weather cache: %v", err)
		return 0, internal.NewStoreError("sweep weather cache", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Compile-time assertions ---
var _ SessionRepository = (*PostgresStorage)(nil)
var _ StatsRepository = (*PostgresStorage)(nil)
var _ WeatherCacheRepository = postgresWeatherRepo{}
