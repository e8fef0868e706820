package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/heatwatch/heatwatch/internal/models"
)

// PostgresStore implements ReadingStore, UserStore and AlertStore on
// top of database/sql with the lib/pq driver.
//
// Expected schema:
//
//	readings   (id text pk, sensor_id text, user_id text, indoor_temp double precision,
//	            outdoor_temp double precision null, violation boolean not null default false,
//	            created_at timestamptz not null, time_zone text not null)
//	sensors    (id text pk, name text, user_id text)
//	users      (id text pk, sms_alert_number text, time_zone text, address text, zip_code text)
//	sms_alerts (id text pk, user_id text, alert_type text, created_at timestamptz not null,
//	            alert_day date not null,
//	            unique (user_id, alert_type, alert_day))
//
// The unique index on sms_alerts makes RecordAlert a conditional
// insert, so concurrent alert passes cannot both record the same
// (user, type, day).
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// ErrAlertAlreadyRecorded is returned by RecordAlert when an alert of
// the same type already exists for the user on the same local day.
var ErrAlertAlreadyRecorded = errors.New("alert already recorded for this day")

const readingColumns = `id, sensor_id, user_id, indoor_temp, outdoor_temp, violation, created_at, time_zone`

func (s *PostgresStore) SaveReading(ctx context.Context, r *models.Reading) error {
	query := `
		INSERT INTO readings (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.SensorID, r.UserID, r.IndoorTemp, r.OutdoorTemp, r.Violation, r.CreatedAt, r.TimeZone,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReadingsForUser(ctx context.Context, userID string) ([]models.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	return s.queryReadings(ctx, query, userID)
}

func (s *PostgresStore) RecentReadings(ctx context.Context, userID string, limit int, now time.Time) ([]models.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE user_id = $1
		  AND created_at <= $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	return s.queryReadings(ctx, query, userID, now, limit)
}

func (s *PostgresStore) ReadingsMissingOutdoorTemp(ctx context.Context) ([]models.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE outdoor_temp IS NULL
		ORDER BY created_at ASC
	`
	return s.queryReadings(ctx, query)
}

func (s *PostgresStore) ReadingsInRange(ctx context.Context, start, end time.Time) ([]models.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE created_at >= $1
		  AND created_at < $2
		ORDER BY created_at ASC
	`
	return s.queryReadings(ctx, query, start, end)
}

func (s *PostgresStore) SetOutdoorTemp(ctx context.Context, readingID string, outdoorTemp float64, violation bool) error {
	query := `
		UPDATE readings
		SET outdoor_temp = $2, violation = $3
		WHERE id = $1
		  AND outdoor_temp IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, readingID, outdoorTemp, violation)
	if err != nil {
		return fmt.Errorf("failed to set outdoor temp: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		// Either the reading does not exist or it was enriched already.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM readings WHERE id = $1)`, readingID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check reading existence: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyEnriched
	}
	return nil
}

func (s *PostgresStore) DeleteReadings(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM readings WHERE id = ANY($1)`
	result, err := s.db.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete readings: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) queryReadings(ctx context.Context, query string, args ...interface{}) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		var outdoor sql.NullFloat64
		if err := rows.Scan(
			&r.ID, &r.SensorID, &r.UserID, &r.IndoorTemp, &outdoor, &r.Violation, &r.CreatedAt, &r.TimeZone,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		if outdoor.Valid {
			v := outdoor.Float64
			r.OutdoorTemp = &v
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}
	return readings, nil
}

func (s *PostgresStore) SaveUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, sms_alert_number, time_zone, address, zip_code)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET sms_alert_number = EXCLUDED.sms_alert_number,
		    time_zone = EXCLUDED.time_zone,
		    address = EXCLUDED.address,
		    zip_code = EXCLUDED.zip_code
	`
	_, err := s.db.ExecContext(ctx, query, u.ID, u.SmsAlertNumber, u.TimeZone, u.Address, u.ZipCode)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveSensor(ctx context.Context, sensor *models.Sensor) error {
	query := `
		INSERT INTO sensors (id, name, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, user_id = EXCLUDED.user_id
	`
	_, err := s.db.ExecContext(ctx, query, sensor.ID, sensor.Name, sensor.UserID)
	if err != nil {
		return fmt.Errorf("failed to upsert sensor: %w", err)
	}
	return nil
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (models.User, error) {
	query := `
		SELECT id, COALESCE(sms_alert_number, ''), time_zone, address, zip_code
		FROM users
		WHERE id = $1
	`
	var u models.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.SmsAlertNumber, &u.TimeZone, &u.Address, &u.ZipCode,
	)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) UsersWithSensors(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT DISTINCT u.id, COALESCE(u.sms_alert_number, ''), u.time_zone, u.address, u.zip_code
		FROM users u
		JOIN sensors s ON s.user_id = u.id
		ORDER BY u.id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users with sensors: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.SmsAlertNumber, &u.TimeZone, &u.Address, &u.ZipCode); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) LatestAlert(ctx context.Context, userID string, alertType models.AlertType) (models.SmsAlert, error) {
	query := `
		SELECT id, user_id, alert_type, created_at
		FROM sms_alerts
		WHERE user_id = $1
		  AND alert_type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var a models.SmsAlert
	err := s.db.QueryRowContext(ctx, query, userID, alertType).Scan(
		&a.ID, &a.UserID, &a.AlertType, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return models.SmsAlert{}, ErrNotFound
	}
	if err != nil {
		return models.SmsAlert{}, fmt.Errorf("failed to query latest alert: %w", err)
	}
	return a, nil
}

// RecordAlert appends one alert history row. CreatedAt is expected to
// carry the user's local zone; alert_day is derived from it so the
// unique (user_id, alert_type, alert_day) index enforces the
// once-per-local-day invariant at the database level.
func (s *PostgresStore) RecordAlert(ctx context.Context, a *models.SmsAlert) error {
	query := `
		INSERT INTO sms_alerts (id, user_id, alert_type, created_at, alert_day)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, alert_type, alert_day) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.AlertType, a.CreatedAt, a.CreatedAt.Format("2006-01-02"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlertAlreadyRecorded
	}
	return nil
}
