package models

import (
	"time"
)

// AlertType identifies the kind of notification sent to a user.
type AlertType string

const (
	AlertTypeHighTemperature AlertType = "high_temperature"
)

// Reading is one timestamped sample of indoor (and optionally outdoor)
// temperature reported by a sensor. Temperatures are degrees Fahrenheit.
//
// OutdoorTemp and Violation start unset and transition exactly once when
// the enricher backfills them; everything else is immutable after ingest.
type Reading struct {
	ID          string    `json:"id"`
	SensorID    string    `json:"sensorId"`
	UserID      string    `json:"userId"`
	IndoorTemp  float64   `json:"indoorTemp"`
	OutdoorTemp *float64  `json:"outdoorTemp,omitempty"`
	Violation   bool      `json:"violation"`
	CreatedAt   time.Time `json:"createdAt"`
	TimeZone    string    `json:"timeZone"`
}

// Enriched reports whether the reading already has its outdoor
// temperature backfilled.
func (r Reading) Enriched() bool {
	return r.OutdoorTemp != nil
}

// Zone resolves the reading's IANA time zone, falling back to UTC when
// the zone is empty or unknown.
func (r Reading) Zone() *time.Location {
	if r.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Sensor is a physical temperature device installed in a user's home.
type Sensor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"userId"`
}

// User is a tenant whose apartment is being monitored. Address and
// ZipCode locate the building for outdoor weather lookups; TimeZone is
// an IANA zone name used for calendar-day alert throttling.
type User struct {
	ID             string `json:"id"`
	SmsAlertNumber string `json:"smsAlertNumber,omitempty"`
	TimeZone       string `json:"timeZone"`
	Address        string `json:"address"`
	ZipCode        string `json:"zipCode"`
}

// Location returns the weather-lookup location for the user.
func (u User) Location() Location {
	return Location{Address: u.Address, ZipCode: u.ZipCode}
}

// Zone resolves the user's IANA time zone, falling back to UTC when the
// zone is empty or unknown.
func (u User) Zone() *time.Location {
	if u.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Location identifies a building for geocoding and weather lookups.
type Location struct {
	Address string `json:"address"`
	ZipCode string `json:"zipCode"`
}

// Empty reports whether there is nothing to geocode.
func (l Location) Empty() bool {
	return l.Address == "" && l.ZipCode == ""
}

// Key returns a canonical string key for caching geocoding results.
func (l Location) Key() string {
	return l.Address + ":" + l.ZipCode
}

// SmsAlert is one row of the append-only alert history. It is the
// durable state behind the per-day alert throttle: an alert of a given
// type counts as "sent today" when a row with a matching type exists
// for the user on the same calendar day in the user's time zone.
type SmsAlert struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	AlertType AlertType `json:"alertType"`
	CreatedAt time.Time `json:"createdAt"`
}
