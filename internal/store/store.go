package store

import (
	"context"
	"errors"
	"time"

	"github.com/heatwatch/heatwatch/internal/models"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyEnriched is returned when a write-back targets a reading
	// whose outdoor temperature is already set; the transition from
	// unset to set happens exactly once.
	ErrAlreadyEnriched = errors.New("reading already enriched")
)

// ReadingStore is the query/write surface the core uses over the
// readings collection. Readings are append-only apart from the two
// explicit writes: the one-time outdoor-temp/violation backfill and
// duplicate deletion.
type ReadingStore interface {
	SaveReading(ctx context.Context, r *models.Reading) error

	// ReadingsForUser returns all of a user's readings, ordered by
	// CreatedAt ascending.
	ReadingsForUser(ctx context.Context, userID string) ([]models.Reading, error)

	// RecentReadings returns up to limit readings for the user with
	// CreatedAt at or before now, ordered by CreatedAt descending.
	RecentReadings(ctx context.Context, userID string, limit int, now time.Time) ([]models.Reading, error)

	// ReadingsMissingOutdoorTemp returns all readings that have not been
	// enriched yet, ordered by CreatedAt ascending.
	ReadingsMissingOutdoorTemp(ctx context.Context) ([]models.Reading, error)

	// ReadingsInRange returns readings with start <= CreatedAt < end,
	// ordered by CreatedAt ascending.
	ReadingsInRange(ctx context.Context, start, end time.Time) ([]models.Reading, error)

	// SetOutdoorTemp sets the outdoor temperature and violation flag of
	// one reading in a single write. Returns ErrAlreadyEnriched if the
	// reading was enriched before.
	SetOutdoorTemp(ctx context.Context, readingID string, outdoorTemp float64, violation bool) error

	// DeleteReadings removes the given readings and returns how many
	// rows were actually deleted.
	DeleteReadings(ctx context.Context, ids []string) (int, error)
}

// UserStore is the query surface over users and their sensors.
type UserStore interface {
	SaveUser(ctx context.Context, u *models.User) error
	SaveSensor(ctx context.Context, s *models.Sensor) error
	UserByID(ctx context.Context, id string) (models.User, error)

	// UsersWithSensors returns every user owning at least one sensor;
	// the alert pass iterates exactly this set.
	UsersWithSensors(ctx context.Context) ([]models.User, error)
}

// AlertStore is the append-only alert history behind the throttle.
type AlertStore interface {
	// LatestAlert returns the most recent alert of the given type for
	// the user, or ErrNotFound when none exists.
	LatestAlert(ctx context.Context, userID string, alertType models.AlertType) (models.SmsAlert, error)

	// RecordAlert appends one alert history row.
	RecordAlert(ctx context.Context, a *models.SmsAlert) error
}
