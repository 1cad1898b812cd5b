package api

import (
	"github.com/keshav323/digital-clock-application/internal"
	"github.com/keshav323/digital-clock-application/internal/service"
)

type App interface {
	Logger() internal.Logger
	Timer() *service.TimerEngine
	Weather() *service.WeatherManager
	Stats() *service.StatsAggregator
}
