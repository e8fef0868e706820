package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// OpenMeteoProvider fetches historical hourly temperatures from the
// Open-Meteo archive API. No API key required.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://archive-api.open-meteo.com/v1/archive",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuit("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Fetch returns the hourly temperature closest to ts for the given
// coordinates.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, lat, lon float64, ts time.Time) (float64, error) {
	day := ts.UTC().Format("2006-01-02")

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("start_date", day)
		values.Set("end_date", day)
		values.Set("hourly", "temperature_2m")
		values.Set("temperature_unit", "fahrenheit")
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly struct {
			Time        []string  `json:"time"`
			Temperature []float64 `json:"temperature_2m"`
		} `json:"hourly"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}

	if len(payload.Hourly.Time) == 0 || len(payload.Hourly.Time) != len(payload.Hourly.Temperature) {
		return 0, fmt.Errorf("openmeteo returned no hourly data for %s", day)
	}

	// Pick the hour closest to the requested timestamp.
	target := ts.UTC()
	bestIdx := -1
	var bestDiff time.Duration
	for i, raw := range payload.Hourly.Time {
		hour, err := time.Parse("2006-01-02T15:04", raw)
		if err != nil {
			continue
		}
		diff := target.Sub(hour)
		if diff < 0 {
			diff = -diff
		}
		if bestIdx == -1 || diff < bestDiff {
			bestIdx = i
			bestDiff = diff
		}
	}
	if bestIdx == -1 {
		return 0, fmt.Errorf("openmeteo returned unparseable hourly data for %s", day)
	}

	return payload.Hourly.Temperature[bestIdx], nil
}
