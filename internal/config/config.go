package config

import (
	"errors"
	"os"
	"strconv"
	"sync"
	"time"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	DBType     string
	DBDSN      string
	SQLitePath string

	WeatherAPIKey  string
	WeatherBaseURL string
	WeatherTTL     time.Duration
	WeatherTimeout time.Duration
	WeatherSweep   bool

	AuthServiceURL string
	LocalAuthToken string
}

var (
	cfg  *Config
	once sync.Once
)

func Load() *Config {
	once.Do(func() {
		_ = loadDotEnv()
		cfg = &Config{
			Env:            getEnv("APP_ENV", "development"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			HTTPAddr:       getEnv("HTTP_ADDR", ":8088"),
			DBType:         getEnv("STORAGE_BACKEND", "memory"),
			DBDSN:          getEnv("POSTGRES_DSN", ""),
			SQLitePath:     getEnv("SQLITE_PATH", "data/clock.db"),
			WeatherAPIKey:  getEnv("OPENWEATHER_API_KEY", ""),
			WeatherBaseURL: getEnv("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
			WeatherTTL:     getDuration("WEATHER_CACHE_TTL", 10*time.Minute),
			WeatherTimeout: getDuration("WEATHER_TIMEOUT", 5*time.Second),
			WeatherSweep:   getBool("WEATHER_SWEEP", true),
			AuthServiceURL: getEnv("AUTH_SERVICE_URL", ""),
			LocalAuthToken: getEnv("LOCAL_AUTH_TOKEN", "MOCK-TOKEN"),
		}
		if err := cfg.Validate(); err != nil {
			panic("Invalid config: " + err.Error())
		}
	})
	return cfg
}

func (c *Config) Validate() error {
	switch c.DBType {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
		}
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
		}
	default:
		return errors.New("STORAGE_BACKEND must be one of: memory, sqlite, postgres")
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	if c.Env != "development" && c.AuthServiceURL == "" {
		return errors.New("AUTH_SERVICE_URL is required outside development")
	}
	if c.WeatherTTL <= 0 || c.WeatherTimeout <= 0 {
		return errors.New("WEATHER_CACHE_TTL and WEATHER_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func loadDotEnv() error {
	data, err := os.ReadFile(".env")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, l := range splitLines(string(data)) {
		if len(l) == 0 || l[0] == '#' {
			continue
		}
		kv := splitKV(l)
		if len(kv) == 2 {
			os.Setenv(kv[0], kv[1])
		}
	}
	return nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' || c == '\r' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func splitKV(s string) []string {
	for i, c := range s {
		if c == '=' {
			return []string{s[:i], s[i+1:]}
		}
	}
	return nil
}
