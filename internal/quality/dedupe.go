// Package quality cleans up ingested readings: duplicate removal and
// outdoor-temperature backfill.
package quality

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/heatwatch/heatwatch/internal/metrics"
	"github.com/heatwatch/heatwatch/internal/models"
	"github.com/heatwatch/heatwatch/internal/store"
)

// Deduplicator removes readings that duplicate another reading of the
// same user, as happens with retried or double ingestion.
type Deduplicator struct {
	readings store.ReadingStore
	logger   *zap.Logger
}

// NewDeduplicator creates a Deduplicator.
func NewDeduplicator(readings store.ReadingStore, logger *zap.Logger) *Deduplicator {
	return &Deduplicator{readings: readings, logger: logger}
}

// dedupeKey identifies a group of interchangeable readings.
type dedupeKey struct {
	sensorID    string
	indoorTemp  float64
	outdoorTemp float64
	hasOutdoor  bool
}

// Dedupe groups the user's readings by (sensor, indoor temp, outdoor
// temp) and keeps exactly one representative per group, the one with
// the earliest CreatedAt. Returns how many readings were removed.
// Idempotent: a second run removes nothing.
func (d *Deduplicator) Dedupe(ctx context.Context, user models.User) (int, error) {
	readings, err := d.readings.ReadingsForUser(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load readings for user %s: %w", user.ID, err)
	}

	keep := make(map[dedupeKey]models.Reading)
	var doomed []string

	// Readings arrive ordered by CreatedAt ascending, so the first
	// reading seen per key is the earliest representative.
	for _, r := range readings {
		key := dedupeKey{
			sensorID:   r.SensorID,
			indoorTemp: r.IndoorTemp,
		}
		if r.OutdoorTemp != nil {
			key.outdoorTemp = *r.OutdoorTemp
			key.hasOutdoor = true
		}

		if _, ok := keep[key]; ok {
			doomed = append(doomed, r.ID)
			continue
		}
		keep[key] = r
	}

	if len(doomed) == 0 {
		return 0, nil
	}

	removed, err := d.readings.DeleteReadings(ctx, doomed)
	if err != nil {
		return 0, fmt.Errorf("failed to delete duplicate readings: %w", err)
	}

	metrics.ReadingsDeduped.Add(float64(removed))
	d.logger.Info("removed duplicate readings",
		zap.String("user_id", user.ID),
		zap.Int("removed", removed),
	)
	return removed, nil
}
