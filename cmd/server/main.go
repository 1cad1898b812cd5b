package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/keshav323/digital-clock-application/internal"
	"github.com/keshav323/digital-clock-application/internal/api"
	"github.com/keshav323/digital-clock-application/internal/auth"
	"github.com/keshav323/digital-clock-application/internal/clock"
	"github.com/keshav323/digital-clock-application/internal/config"
	"github.com/keshav323/digital-clock-application/internal/service"
	"github.com/keshav323/digital-clock-application/internal/storage"
	"github.com/keshav323/digital-clock-application/internal/weather"
)

type application struct {
	logger  internal.Logger
	timer   *service.TimerEngine
	weather *service.WeatherManager
	stats   *service.StatsAggregator
}

func (a *application) Logger() internal.Logger          { return a.logger }
func (a *application) Timer() *service.TimerEngine      { return a.timer }
func (a *application) Weather() *service.WeatherManager { return a.weather }
func (a *application) Stats() *service.StatsAggregator  { return a.stats }

var _ api.App = (*application)(nil)

func main() {
	cfg := config.Load()

	logger, err := internal.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	var repos storage.Repositories
	switch cfg.DBType {
	case "sqlite":
		repos, err = storage.NewSQLiteRepositories(cfg.SQLitePath, logger)
	case "postgres":
		repos, err = storage.NewPostgresRepositories(cfg.DBDSN, logger)
	default:
		repos = storage.NewMemoryRepositories(logger)
	}
	if err != nil {
		logger.Fatalf("failed to init storage backend %q: %v", cfg.DBType, err)
	}

	clk := clock.NewRealClock()
	stats := service.NewStatsAggregator(repos.Stats, repos.Sessions, clk, logger)
	timer := service.NewTimerEngine(repos.Sessions, stats, clk, logger)

	provider := weather.NewOpenWeatherProvider(cfg.WeatherAPIKey, cfg.WeatherBaseURL, cfg.WeatherTimeout, logger)
	weatherMgr := service.NewWeatherManager(repos.Weather, provider, clk, cfg.WeatherTTL, cfg.WeatherTimeout, logger)
	if cfg.WeatherSweep {
		weatherMgr.StartSweeper(context.Background(), cfg.WeatherTTL)
	}

	app := &application{logger: logger, timer: timer, weather: weatherMgr, stats: stats}

	var authProvider auth.Provider
	if cfg.Env == "development" {
		authProvider = auth.NewLocalAuthProvider(cfg.LocalAuthToken, logger)
	} else {
		authProvider = auth.NewRemoteAuthProvider(cfg.AuthServiceURL, logger)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(api.RequestIDMiddleware())

	apiGroup := r.Group("/api")
	apiGroup.Use(auth.AuthMiddleware(authProvider, cfg))
	{
		apiGroup.POST("/pomodoro/start", api.StartSession(app))
		apiGroup.POST("/pomodoro/pause", api.PauseSession(app))
		apiGroup.POST("/pomodoro/complete", api.CompleteSession(app))
		apiGroup.POST("/pomodoro/stop", api.StopSession(app))
		apiGroup.GET("/pomodoro/current", api.GetCurrentSession(app))
		apiGroup.GET("/pomodoro/history", api.GetSessionHistory(app))
		apiGroup.GET("/pomodoro/analytics", api.GetPomodoroAnalytics(app))
		apiGroup.GET("/users/stats", api.GetUserStats(app))
		apiGroup.GET("/weather/current/:lat/:lon", api.GetCurrentWeather(app))
	}

	logger.Infof("Server running on %s (backend=%s, env=%s)", cfg.HTTPAddr, cfg.DBType, cfg.Env)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatalf("failed to start server: %v", err)
	}
}
