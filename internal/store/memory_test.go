package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwatch/heatwatch/internal/models"
)

func addReading(t *testing.T, s *MemoryStore, id, userID string, indoor float64, createdAt time.Time) {
	t.Helper()
	require.NoError(t, s.SaveReading(context.Background(), &models.Reading{
		ID:         id,
		SensorID:   userID + "-sensor",
		UserID:     userID,
		IndoorTemp: indoor,
		CreatedAt:  createdAt,
		TimeZone:   "UTC",
	}))
}

func TestRecentReadings_OrderAndLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2015, time.March, 1, 12, 0, 0, 0, time.UTC)
	addReading(t, s, "r1", "u1", 70, base)
	addReading(t, s, "r2", "u1", 71, base.Add(time.Hour))
	addReading(t, s, "r3", "u1", 72, base.Add(2*time.Hour))

	recent, err := s.RecentReadings(ctx, "u1", 2, base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "r3", recent[0].ID)
	assert.Equal(t, "r2", recent[1].ID)
}

func TestRecentReadings_CutoffAtNow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2015, time.March, 1, 12, 0, 0, 0, time.UTC)
	addReading(t, s, "r1", "u1", 70, base)
	addReading(t, s, "r2", "u1", 71, base.Add(time.Hour))

	// now sits exactly on r1; r2 is in the future.
	recent, err := s.RecentReadings(ctx, "u1", 2, base)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "r1", recent[0].ID)
}

func TestReadingsMissingOutdoorTemp_AscendingOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2015, time.March, 1, 12, 0, 0, 0, time.UTC)
	addReading(t, s, "newer", "u1", 70, base.Add(time.Hour))
	addReading(t, s, "older", "u1", 70, base)

	require.NoError(t, s.SetOutdoorTemp(ctx, "newer", 20, false))

	pending, err := s.ReadingsMissingOutdoorTemp(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "older", pending[0].ID)
}

func TestSetOutdoorTemp_TransitionsExactlyOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	addReading(t, s, "r1", "u1", 70, time.Now().UTC())

	require.NoError(t, s.SetOutdoorTemp(ctx, "r1", 20, true))

	err := s.SetOutdoorTemp(ctx, "r1", 30, false)
	assert.ErrorIs(t, err, ErrAlreadyEnriched)

	readings, err := s.ReadingsForUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, readings[0].OutdoorTemp)
	assert.Equal(t, 20.0, *readings[0].OutdoorTemp)
	assert.True(t, readings[0].Violation)
}

func TestSetOutdoorTemp_UnknownReading(t *testing.T) {
	s := NewMemoryStore()
	err := s.SetOutdoorTemp(context.Background(), "missing", 20, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadingsInRange_HalfOpenInterval(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2015, time.March, 1, 12, 0, 0, 0, time.UTC)
	addReading(t, s, "before", "u1", 70, base.Add(-time.Hour))
	addReading(t, s, "start", "u1", 70, base)
	addReading(t, s, "mid", "u1", 70, base.Add(30*time.Minute))
	addReading(t, s, "end", "u1", 70, base.Add(time.Hour))

	got, err := s.ReadingsInRange(ctx, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "start", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
}

func TestUsersWithSensors(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, &models.User{ID: "with"}))
	require.NoError(t, s.SaveUser(ctx, &models.User{ID: "without"}))
	require.NoError(t, s.SaveSensor(ctx, &models.Sensor{ID: "s1", UserID: "with"}))

	users, err := s.UsersWithSensors(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "with", users[0].ID)
}

func TestLatestAlert(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.LatestAlert(ctx, "u1", models.AlertTypeHighTemperature)
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2015, time.March, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordAlert(ctx, &models.SmsAlert{
		ID: "a1", UserID: "u1", AlertType: models.AlertTypeHighTemperature, CreatedAt: base,
	}))
	require.NoError(t, s.RecordAlert(ctx, &models.SmsAlert{
		ID: "a2", UserID: "u1", AlertType: models.AlertTypeHighTemperature, CreatedAt: base.Add(time.Hour),
	}))

	latest, err := s.LatestAlert(ctx, "u1", models.AlertTypeHighTemperature)
	require.NoError(t, err)
	assert.Equal(t, "a2", latest.ID)
}
