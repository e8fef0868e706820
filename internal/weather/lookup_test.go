package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/heatwatch/heatwatch/internal/models"
)

type staticResolver struct {
	calls int
}

func (r *staticResolver) Resolve(loc models.Location) (float64, float64, error) {
	r.calls++
	return 40.75, -73.99, nil
}

type stubProvider struct {
	name  string
	temp  float64
	err   error
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Fetch(ctx context.Context, lat, lon float64, ts time.Time) (float64, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	return p.temp, nil
}

func testLocation() models.Location {
	return models.Location{Address: "350 5th Ave, New York, NY", ZipCode: "10118"}
}

func TestLookup_FirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "first", temp: 30}
	second := &stubProvider{name: "second", temp: 99}
	svc := NewLookupService(&staticResolver{}, []Provider{first, second}, zap.NewNop())

	temp, err := svc.Lookup(context.Background(), testLocation(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 30.0, temp)
	assert.Equal(t, 0, second.calls)
}

func TestLookup_FallsBackOnProviderFailure(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("rate limited")}
	second := &stubProvider{name: "second", temp: 28}
	svc := NewLookupService(&staticResolver{}, []Provider{first, second}, zap.NewNop())

	temp, err := svc.Lookup(context.Background(), testLocation(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 28.0, temp)
	assert.Equal(t, 1, first.calls)
}

func TestLookup_AllProvidersFail(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("unavailable")}
	svc := NewLookupService(&staticResolver{}, []Provider{first}, zap.NewNop())

	_, err := svc.Lookup(context.Background(), testLocation(), time.Now())
	assert.Error(t, err)
}

func TestLookup_NoProvidersConfigured(t *testing.T) {
	svc := NewLookupService(&staticResolver{}, nil, zap.NewNop())

	_, err := svc.Lookup(context.Background(), testLocation(), time.Now())
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestLookup_EmptyLocation(t *testing.T) {
	resolver := &staticResolver{}
	svc := NewLookupService(resolver, []Provider{&stubProvider{temp: 30}}, zap.NewNop())

	_, err := svc.Lookup(context.Background(), models.Location{}, time.Now())
	assert.ErrorIs(t, err, ErrNoLocation)
	assert.Equal(t, 0, resolver.calls)
}

func TestLookup_GeocodingIsCached(t *testing.T) {
	resolver := &staticResolver{}
	svc := NewLookupService(resolver, []Provider{&stubProvider{temp: 30}}, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := svc.Lookup(context.Background(), testLocation(), time.Now())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, resolver.calls)
}
