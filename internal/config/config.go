package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/heatwatch/heatwatch/internal/rules"
)

type AppConfig struct {
	Port        string
	MetricsPort string

	// DatabaseURL selects the postgres store; when empty the service
	// falls back to the in-memory store (development mode).
	DatabaseURL string

	// External service credentials.
	GoogleAPIKey      string
	OpenWeatherAPIKey string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string

	// EnrichInterval controls how often the enrichment pass runs;
	// AlertInterval how often the alert pass runs.
	EnrichInterval time.Duration
	AlertInterval  time.Duration

	// EnrichThrottleDelay is the minimum delay between consecutive
	// weather lookups inside one enrichment pass.
	EnrichThrottleDelay time.Duration

	HTTPTimeout time.Duration

	// Rule carries the active violation/alert thresholds.
	Rule rules.Rule

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.MetricsPort = getenvDefault("METRICS_PORT", "9090")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.TwilioFromNumber = os.Getenv("TWILIO_FROM_NUMBER")

	var err error
	cfg.EnrichInterval, err = getenvDuration("ENRICH_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	cfg.AlertInterval, err = getenvDuration("ALERT_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	cfg.EnrichThrottleDelay, err = getenvDuration("ENRICH_THROTTLE_DELAY", "1s")
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	// Rule thresholds default to the NYC heat-season rule set and can
	// be overridden per jurisdiction without touching evaluation code.
	rule := rules.NYC2015()
	rule.IndoorMinimum = getenvFloat("RULE_INDOOR_MINIMUM", rule.IndoorMinimum)
	rule.OutdoorTrigger = getenvFloat("RULE_OUTDOOR_TRIGGER", rule.OutdoorTrigger)
	rule.HighTempThreshold = getenvFloat("RULE_HIGH_TEMP_THRESHOLD", rule.HighTempThreshold)
	cfg.Rule = rule

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
