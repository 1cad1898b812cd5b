// Package weather holds the external weather provider contract and the
// OpenWeather client. Providers are collaborators: the cache manager calls
// them with a bounded timeout and classifies their failures, it never retries.
package weather

import (
	"context"

	"github.com/keshav323/digital-clock-application/internal"
)

// Provider abstracts a weather data source (e.g. OpenWeather).
type Provider interface {
	Name() string
	// Fetch returns current conditions for the coordinates. Failures must be
	// classified: internal.ErrProviderUnavailable for network/DNS/timeout,
	// internal.ErrProviderMisconfigured for auth, internal.ErrProviderError
	// for everything else.
	Fetch(ctx context.Context, lat, lon float64) (*internal.WeatherSnapshot, *internal.WeatherLocation, error)
}
