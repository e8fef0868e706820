package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/heatwatch/heatwatch/internal/metrics"
	"github.com/heatwatch/heatwatch/internal/models"
	"github.com/heatwatch/heatwatch/internal/rules"
	"github.com/heatwatch/heatwatch/internal/store"
)

// Decision is the outcome of evaluating one user at one point in time.
// Readings holds the two most recent readings (most recent first) when
// the rule fired, for message rendering.
type Decision struct {
	Fire     bool
	Readings []models.Reading
}

// Engine decides whether a user should receive a high-temperature
// alert. The rule fires only when all of the following hold:
//
//  1. the user has an SMS alert number configured,
//  2. the user has at least two readings at or before now,
//  3. both of the two most recent readings are at or above the
//     high-temperature threshold,
//  4. no alert of this type was sent to the user today.
//
// "Consecutive" means exactly the two most recent readings; no maximum
// gap between them is enforced.
type Engine struct {
	readings store.ReadingStore
	throttle *Throttle
	rule     rules.Rule
}

// NewEngine creates an Engine.
func NewEngine(readings store.ReadingStore, throttle *Throttle, rule rules.Rule) *Engine {
	return &Engine{readings: readings, throttle: throttle, rule: rule}
}

// Evaluate applies the rule for one user at time now. A user failing
// any condition yields Fire == false with no error; errors are
// reserved for store failures.
func (e *Engine) Evaluate(ctx context.Context, user models.User, now time.Time) (Decision, error) {
	if user.SmsAlertNumber == "" {
		return Decision{}, nil
	}

	recent, err := e.readings.RecentReadings(ctx, user.ID, 2, now)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load recent readings: %w", err)
	}
	if len(recent) < 2 {
		return Decision{}, nil
	}

	for _, r := range recent {
		if !rules.IsHighTemp(r.IndoorTemp, e.rule) {
			return Decision{}, nil
		}
	}

	alerted, err := e.throttle.HasAlertedToday(ctx, user, models.AlertTypeHighTemperature, now)
	if err != nil {
		return Decision{}, err
	}
	if alerted {
		metrics.AlertsSuppressed.Inc()
		return Decision{}, nil
	}

	return Decision{Fire: true, Readings: recent}, nil
}
