package api

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/client"

	identityapp "github.com/Apurer/dogwalk-api/internal/domains/identity/application"
	walkdomain "github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
)

// Document store backends selectable through DOCSTORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port                 string
	PostgresDSN          string
	DocstoreBackend      string
	JWTSecret            []byte
	TokenTTL             time.Duration
	ZoneRadiusMeters     float64
	TemporalAddress      string
	TemporalNamespace    string
	TemporalDisabled     bool
	SessionPurgeInterval time.Duration
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if val := strings.TrimSpace(getenv(key)); val != "" {
			return val
		}
		return fallback
	}
	cfg := Config{
		Port:              env("PORT", "8080"),
		PostgresDSN:       env("POSTGRES_DSN", ""),
		JWTSecret:         []byte(env("JWT_SECRET", "")),
		TokenTTL:          identityapp.DefaultTokenTTL,
		ZoneRadiusMeters:  walkdomain.DefaultZoneRadiusMeters,
		TemporalAddress:   env("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace: env("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:  isTruthy(getenv("TEMPORAL_DISABLED")),
	}

	defaultBackend := BackendMemory
	if cfg.PostgresDSN != "" {
		defaultBackend = BackendPostgres
	}
	cfg.DocstoreBackend = strings.ToLower(env("DOCSTORE_BACKEND", defaultBackend))
	switch cfg.DocstoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, errors.New("DOCSTORE_BACKEND=postgres requires POSTGRES_DSN")
		}
	default:
		return Config{}, fmt.Errorf("DOCSTORE_BACKEND must be %q or %q", BackendMemory, BackendPostgres)
	}

	if len(cfg.JWTSecret) == 0 {
		return Config{}, errors.New("JWT_SECRET must be set")
	}
	if raw := getenv("TOKEN_TTL_HOURS"); strings.TrimSpace(raw) != "" {
		hours, err := positiveInt("TOKEN_TTL_HOURS", raw)
		if err != nil {
			return Config{}, err
		}
		cfg.TokenTTL = time.Duration(hours) * time.Hour
	}
	if raw := strings.TrimSpace(getenv("PICKUP_ZONE_RADIUS_METERS")); raw != "" {
		meters, err := strconv.ParseFloat(raw, 64)
		if err != nil || meters <= 0 {
			return Config{}, errors.New("PICKUP_ZONE_RADIUS_METERS must be a positive number")
		}
		cfg.ZoneRadiusMeters = meters
	}
	if raw := getenv("SESSION_PURGE_INTERVAL_MINUTES"); strings.TrimSpace(raw) != "" {
		minutes, err := positiveInt("SESSION_PURGE_INTERVAL_MINUTES", raw)
		if err != nil {
			return Config{}, err
		}
		cfg.SessionPurgeInterval = time.Duration(minutes) * time.Minute
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func positiveInt(key, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
