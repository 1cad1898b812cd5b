package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/keshav323/digital-clock-application/internal"
)

// OpenWeatherProvider fetches current conditions from the OpenWeather
// "current weather" endpoint using metric units.
type OpenWeatherProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     internal.Logger
}

func NewOpenWeatherProvider(apiKey, baseURL string, timeout time.Duration, logger internal.Logger) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (p *OpenWeatherProvider) Name() string {
	return "openweather"
}

// openWeatherResponse mirrors the fields we consume from the upstream payload.
type openWeatherResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Visibility int `json:"visibility"` // meters
	Weather    []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Dt int64 `json:"dt"`
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, lat, lon float64) (*internal.WeatherSnapshot, *internal.WeatherLocation, error) {
	if p.apiKey == "" {
		return nil, nil, fmt.Errorf("%w: missing API key", internal.ErrProviderMisconfigured)
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", p.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", internal.ErrProviderError, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warnf("openweather request failed: %v", err)
		return nil, nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		p.logger.Errorf("openweather rejected credentials: status %d", resp.StatusCode)
		return nil, nil, fmt.Errorf("%w: status %d", internal.ErrProviderMisconfigured, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, nil, fmt.Errorf("%w: status %d", internal.ErrProviderUnavailable, resp.StatusCode)
	default:
		return nil, nil, fmt.Errorf("%w: status %d", internal.ErrProviderError, resp.StatusCode)
	}

	var body openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		p.logger.Errorf("failed to decode openweather response: %v", err)
		return nil, nil, fmt.Errorf("%w: %v", internal.ErrProviderError, err)
	}

	snapshot := &internal.WeatherSnapshot{
		Temperature:   body.Main.Temp,
		FeelsLike:     body.Main.FeelsLike,
		Humidity:      body.Main.Humidity,
		Pressure:      body.Main.Pressure,
		WindSpeed:     body.Wind.Speed,
		WindDirection: body.Wind.Deg,
		VisibilityKm:  float64(body.Visibility) / 1000,
		ObservedAt:    time.Unix(body.Dt, 0).UTC(),
	}
	if len(body.Weather) > 0 {
		snapshot.Condition = internal.WeatherCondition{
			Main:        body.Weather[0].Main,
			Description: body.Weather[0].Description,
			Icon:        body.Weather[0].Icon,
		}
	}
	location := &internal.WeatherLocation{
		City:    body.Name,
		Country: body.Sys.Country,
		Lat:     lat,
		Lon:     lon,
	}
	return snapshot, location, nil
}

// classifyTransportError maps client-side failures onto the provider error
// kinds: timeouts and DNS/connection errors mean the upstream is unreachable.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout", internal.ErrProviderUnavailable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: timeout", internal.ErrProviderUnavailable)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", internal.ErrProviderUnavailable, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", internal.ErrProviderUnavailable, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", internal.ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%w: %v", internal.ErrProviderError, err)
}
