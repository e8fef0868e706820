package weather

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kelvins/geocoder"
	"go.uber.org/zap"

	"github.com/heatwatch/heatwatch/internal/models"
)

var (
	// ErrNoLocation is returned when a user has nothing to geocode.
	ErrNoLocation = errors.New("no location configured")

	// ErrNoProviders is returned when every provider failed (or none
	// are configured) for a lookup.
	ErrNoProviders = errors.New("no weather provider succeeded")
)

// Provider abstracts one historical-weather data source. Fetch returns
// the outdoor temperature (Fahrenheit) at the given coordinates and
// point in time.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64, ts time.Time) (float64, error)
}

// Resolver turns a street address / zip code into coordinates.
type Resolver interface {
	Resolve(loc models.Location) (lat, lon float64, err error)
}

// LookupService is the outdoor-temperature lookup used by the
// enricher: geocode the user's location once (cached), then try the
// configured providers in order until one succeeds.
type LookupService struct {
	resolver  Resolver
	providers []Provider
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string][2]float64 // location key -> lat, lon
}

// NewLookupService creates a LookupService.
func NewLookupService(resolver Resolver, providers []Provider, logger *zap.Logger) *LookupService {
	return &LookupService{
		resolver:  resolver,
		providers: providers,
		logger:    logger,
		cache:     make(map[string][2]float64),
	}
}

// Lookup returns the outdoor temperature at the location and timestamp.
// Providers are tried in order; the first success wins.
func (s *LookupService) Lookup(ctx context.Context, loc models.Location, ts time.Time) (float64, error) {
	if loc.Empty() {
		return 0, ErrNoLocation
	}

	lat, lon, err := s.coordinates(loc)
	if err != nil {
		return 0, err
	}

	var lastErr error = ErrNoProviders
	for _, p := range s.providers {
		temp, err := p.Fetch(ctx, lat, lon, ts)
		if err != nil {
			s.logger.Warn("weather provider lookup failed",
				zap.String("provider", p.Name()),
				zap.String("location", loc.Key()),
				zap.Time("timestamp", ts),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		return temp, nil
	}
	return 0, lastErr
}

func (s *LookupService) coordinates(loc models.Location) (float64, float64, error) {
	key := loc.Key()

	s.mu.Lock()
	if c, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return c[0], c[1], nil
	}
	s.mu.Unlock()

	lat, lon, err := s.resolver.Resolve(loc)
	if err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	s.cache[key] = [2]float64{lat, lon}
	s.mu.Unlock()
	return lat, lon, nil
}

// GoogleResolver geocodes addresses through the Google Geocoding API.
type GoogleResolver struct{}

// NewGoogleResolver configures the geocoder package with the API key
// and returns a resolver.
func NewGoogleResolver(apiKey string) *GoogleResolver {
	geocoder.ApiKey = apiKey
	return &GoogleResolver{}
}

func (g *GoogleResolver) Resolve(loc models.Location) (float64, float64, error) {
	address := geocoder.Address{
		Street:     loc.Address,
		PostalCode: loc.ZipCode,
	}
	result, err := geocoder.Geocoding(address)
	if err != nil {
		return 0, 0, err
	}
	return result.Latitude, result.Longitude, nil
}
