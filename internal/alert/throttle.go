// Package alert contains the high-temperature alert rule engine, the
// per-day throttle and the worker that sweeps all users.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heatwatch/heatwatch/internal/models"
	"github.com/heatwatch/heatwatch/internal/store"
)

// Throttle enforces at-most-one alert per user, alert type and
// calendar day. "Day" means the calendar day in the user's configured
// time zone, not a rolling 24-hour window: alerts 23 hours apart that
// cross a local midnight are both permitted.
type Throttle struct {
	alerts store.AlertStore
}

// NewThrottle creates a Throttle backed by the alert history store.
func NewThrottle(alerts store.AlertStore) *Throttle {
	return &Throttle{alerts: alerts}
}

// HasAlertedToday reports whether an alert of the given type was
// already recorded for the user on the local calendar day of now.
func (t *Throttle) HasAlertedToday(ctx context.Context, user models.User, alertType models.AlertType, now time.Time) (bool, error) {
	latest, err := t.alerts.LatestAlert(ctx, user.ID, alertType)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load latest alert: %w", err)
	}

	zone := user.Zone()
	return sameDay(latest.CreatedAt.In(zone), now.In(zone)), nil
}

// RecordAlert appends one alert history row stamped in the user's
// local zone. A concurrent pass recording the same (user, type, day)
// first is not an error.
func (t *Throttle) RecordAlert(ctx context.Context, user models.User, alertType models.AlertType, now time.Time) error {
	a := &models.SmsAlert{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		AlertType: alertType,
		CreatedAt: now.In(user.Zone()),
	}
	err := t.alerts.RecordAlert(ctx, a)
	if errors.Is(err, store.ErrAlertAlreadyRecorded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
