package storage

import "github.com/keshav323/digital-clock-application/internal"

// Repositories bundles the three stores one backend provides.
type Repositories struct {
	Sessions SessionRepository
	Stats    StatsRepository
	Weather  WeatherCacheRepository
}

func NewMemoryRepositories(logger internal.Logger) Repositories {
	m := NewMemoryStorage(logger)
	return Repositories{Sessions: m, Stats: m, Weather: memoryWeatherRepo{m: m}}
}

func NewSQLiteRepositories(path string, logger internal.Logger) (Repositories, error) {
	s, err := NewSQLiteStorage(path, logger)
	if err != nil {
		return Repositories{}, err
	}
	return Repositories{Sessions: s, Stats: s, Weather: sqliteWeatherRepo{s: s}}, nil
}

func NewPostgresRepositories(dsn string, logger internal.Logger) (Repositories, error) {
	p, err := NewPostgresStorage(dsn, logger)
	if err != nil {
		return Repositories{}, err
	}
	return Repositories{Sessions: p, Stats: p, Weather: postgresWeatherRepo{p: p}}, nil
}
