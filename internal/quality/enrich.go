package quality

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/heatwatch/heatwatch/internal/metrics"
	"github.com/heatwatch/heatwatch/internal/models"
	"github.com/heatwatch/heatwatch/internal/rules"
	"github.com/heatwatch/heatwatch/internal/store"
	"github.com/heatwatch/heatwatch/internal/weather"
)

// Mode controls how chatty an enrichment pass is.
type Mode string

const (
	Silent  Mode = "silent"
	Verbose Mode = "verbose"
)

// Lookup is the weather dependency of the enricher: outdoor
// temperature for a location at a point in time.
type Lookup interface {
	Lookup(ctx context.Context, loc models.Location, ts time.Time) (float64, error)
}

// Enricher backfills missing outdoor temperatures and the derived
// violation flag. Lookups are throttled by a configurable inter-call
// delay; failures are skipped, never fatal to a pass.
type Enricher struct {
	readings store.ReadingStore
	users    store.UserStore
	lookup   Lookup
	rule     rules.Rule
	logger   *zap.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(readings store.ReadingStore, users store.UserStore, lookup Lookup, rule rules.Rule, logger *zap.Logger) *Enricher {
	return &Enricher{
		readings: readings,
		users:    users,
		lookup:   lookup,
		rule:     rule,
		logger:   logger,
	}
}

// UpdateOutdoorTemps processes the given readings in order. For each
// one it resolves the owning user's location, looks up the outdoor
// temperature at the reading's timestamp, computes the violation flag
// and writes both back in one store call. A reading whose lookup fails
// (or whose user has no location) is left untouched; the next
// scheduled pass retries it. Sleeps throttleDelay between consecutive
// external calls when nonzero.
func (e *Enricher) UpdateOutdoorTemps(ctx context.Context, readings []models.Reading, throttleDelay time.Duration, mode Mode) (updated, failed int) {
	users := make(map[string]models.User)

	for i, r := range readings {
		if ctx.Err() != nil {
			return updated, failed
		}

		user, ok := users[r.UserID]
		if !ok {
			u, err := e.users.UserByID(ctx, r.UserID)
			if err != nil {
				e.logger.Warn("skipping reading of unknown user",
					zap.String("reading_id", r.ID),
					zap.String("user_id", r.UserID),
					zap.Error(err),
				)
				failed++
				continue
			}
			user = u
			users[r.UserID] = u
		}

		loc := user.Location()
		if loc.Empty() {
			// Not an error: the user is simply not eligible for
			// enrichment until a location is configured.
			failed++
			continue
		}

		if i > 0 && throttleDelay > 0 {
			time.Sleep(throttleDelay)
		}

		temp, err := e.lookup.Lookup(ctx, loc, r.CreatedAt)
		if err != nil {
			metrics.EnrichmentLookups.WithLabelValues("failure").Inc()
			if !errors.Is(err, weather.ErrNoLocation) {
				e.logger.Warn("outdoor temperature lookup failed",
					zap.String("reading_id", r.ID),
					zap.Error(err),
				)
			}
			failed++
			continue
		}
		metrics.EnrichmentLookups.WithLabelValues("success").Inc()

		violation := rules.IsViolation(r.IndoorTemp, temp, r.CreatedAt.In(r.Zone()), e.rule)

		if err := e.readings.SetOutdoorTemp(ctx, r.ID, temp, violation); err != nil {
			if errors.Is(err, store.ErrAlreadyEnriched) {
				// Another pass got there first; nothing to do.
				continue
			}
			e.logger.Error("failed to write back outdoor temperature",
				zap.String("reading_id", r.ID),
				zap.Error(err),
			)
			failed++
			continue
		}

		updated++
		if mode == Verbose {
			e.logger.Info("enriched reading",
				zap.String("reading_id", r.ID),
				zap.Float64("outdoor_temp", temp),
				zap.Bool("violation", violation),
			)
		}
	}

	return updated, failed
}
