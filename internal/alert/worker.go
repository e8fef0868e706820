package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/heatwatch/heatwatch/internal/metrics"
	"github.com/heatwatch/heatwatch/internal/models"
	"github.com/heatwatch/heatwatch/internal/notify"
	"github.com/heatwatch/heatwatch/internal/store"
)

// Worker runs one alert evaluation pass over every user that owns at
// least one sensor. Each user's decision is independent; a dispatch
// failure for one user never aborts the pass.
type Worker struct {
	users      store.UserStore
	engine     *Engine
	throttle   *Throttle
	dispatcher notify.Dispatcher
	logger     *zap.Logger
}

// NewWorker creates a Worker.
func NewWorker(users store.UserStore, engine *Engine, throttle *Throttle, dispatcher notify.Dispatcher, logger *zap.Logger) *Worker {
	return &Worker{
		users:      users,
		engine:     engine,
		throttle:   throttle,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Perform evaluates all eligible users at time now and dispatches at
// most one alert per qualifying user. An alert is recorded as sent
// only after the dispatcher accepted it, so a failed dispatch is
// retried naturally on the next pass.
func (w *Worker) Perform(ctx context.Context, now time.Time) error {
	users, err := w.users.UsersWithSensors(ctx)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}

	dispatched := 0
	for _, user := range users {
		decision, err := w.engine.Evaluate(ctx, user, now)
		if err != nil {
			w.logger.Error("alert evaluation failed",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
			continue
		}
		if !decision.Fire {
			continue
		}

		message := renderHighTempMessage(decision.Readings)
		if err := w.dispatcher.Send(ctx, user.SmsAlertNumber, message); err != nil {
			metrics.DispatchFailures.Inc()
			w.logger.Error("alert dispatch failed",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
			continue
		}

		if err := w.throttle.RecordAlert(ctx, user, models.AlertTypeHighTemperature, now); err != nil {
			// The SMS went out but the history row did not stick; the
			// next pass may re-alert. Surface it loudly.
			w.logger.Error("failed to record dispatched alert",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
		}

		metrics.AlertsDispatched.Inc()
		dispatched++
	}

	w.logger.Info("alert pass completed",
		zap.Int("users", len(users)),
		zap.Int("dispatched", dispatched),
	)
	return nil
}

func renderHighTempMessage(recent []models.Reading) string {
	if len(recent) < 2 {
		return "Heat Watch: your sensor reported unusually high indoor temperatures."
	}
	return fmt.Sprintf(
		"Heat Watch: your sensor reported %.0f°F and %.0f°F in its last two readings. You may want to check on your heat.",
		recent[0].IndoorTemp, recent[1].IndoorTemp,
	)
}
