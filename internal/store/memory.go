package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/heatwatch/heatwatch/internal/models"
)

// MemoryStore is a concurrency-safe in-memory implementation of
// ReadingStore, UserStore and AlertStore, used in development mode and
// in tests.
type MemoryStore struct {
	mu sync.RWMutex

	readings map[string]models.Reading // key: reading ID
	users    map[string]models.User    // key: user ID
	sensors  map[string]models.Sensor  // key: sensor ID
	alerts   []models.SmsAlert         // append-only
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		readings: make(map[string]models.Reading),
		users:    make(map[string]models.User),
		sensors:  make(map[string]models.Sensor),
	}
}

func (s *MemoryStore) SaveReading(ctx context.Context, r *models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[r.ID] = *r
	return nil
}

func (s *MemoryStore) ReadingsForUser(ctx context.Context, userID string) ([]models.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Reading
	for _, r := range s.readings {
		if r.UserID == userID {
			result = append(result, r)
		}
	}
	sortByCreatedAtAsc(result)
	return result, nil
}

func (s *MemoryStore) RecentReadings(ctx context.Context, userID string, limit int, now time.Time) ([]models.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Reading
	for _, r := range s.readings {
		if r.UserID == userID && !r.CreatedAt.After(now) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) ReadingsMissingOutdoorTemp(ctx context.Context) ([]models.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Reading
	for _, r := range s.readings {
		if r.OutdoorTemp == nil {
			result = append(result, r)
		}
	}
	sortByCreatedAtAsc(result)
	return result, nil
}

func (s *MemoryStore) ReadingsInRange(ctx context.Context, start, end time.Time) ([]models.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Reading
	for _, r := range s.readings {
		if !r.CreatedAt.Before(start) && r.CreatedAt.Before(end) {
			result = append(result, r)
		}
	}
	sortByCreatedAtAsc(result)
	return result, nil
}

func (s *MemoryStore) SetOutdoorTemp(ctx context.Context, readingID string, outdoorTemp float64, violation bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.readings[readingID]
	if !ok {
		return ErrNotFound
	}
	if r.OutdoorTemp != nil {
		return ErrAlreadyEnriched
	}
	r.OutdoorTemp = &outdoorTemp
	r.Violation = violation
	s.readings[readingID] = r
	return nil
}

func (s *MemoryStore) DeleteReadings(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := s.readings[id]; ok {
			delete(s.readings, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) SaveSensor(ctx context.Context, sensor *models.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensors[sensor.ID] = *sensor
	return nil
}

func (s *MemoryStore) UserByID(ctx context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) UsersWithSensors(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	withSensors := make(map[string]bool)
	for _, sensor := range s.sensors {
		withSensors[sensor.UserID] = true
	}

	var result []models.User
	for id, u := range s.users {
		if withSensors[id] {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) LatestAlert(ctx context.Context, userID string, alertType models.AlertType) (models.SmsAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest models.SmsAlert
	found := false
	for _, a := range s.alerts {
		if a.UserID != userID || a.AlertType != alertType {
			continue
		}
		if !found || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
			found = true
		}
	}
	if !found {
		return models.SmsAlert{}, ErrNotFound
	}
	return latest, nil
}

func (s *MemoryStore) RecordAlert(ctx context.Context, a *models.SmsAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *a)
	return nil
}

func sortByCreatedAtAsc(readings []models.Reading) {
	sort.Slice(readings, func(i, j int) bool {
		return readings[i].CreatedAt.Before(readings[j].CreatedAt)
	})
}
