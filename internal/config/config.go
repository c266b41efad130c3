// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type MatchingConfig struct {
	// LocationFreshness is how old a driver position may be and still count
	// for proximity matching.
	LocationFreshness time.Duration
}

type Config struct {
	ServiceName string

	HTTP struct {
		Addr string
	}
	DB struct {
		// DSN selects the Postgres job store when set; empty keeps the
		// in-memory store.
		DSN string
	}
	Redis struct {
		// Addr enables the driver geo index when set.
		Addr string
	}
	Backend struct {
		// Mode is "rest" or "fake".
		Mode    string
		BaseURL string
		APIKey  string
		Timeout time.Duration
	}
	Push struct {
		// Mode is "fcm" or "log".
		Mode    string
		Timeout time.Duration
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
	}
	Maps struct {
		APIKey       string
		RouteTimeout time.Duration
	}
	Kafka struct {
		// Brokers enables the job event stream when non-empty.
		Brokers []string
		Topic   string
	}
	Matching MatchingConfig
}

func Load() Config {
	_ = godotenv.Load(".env")

	var cfg Config
	cfg.ServiceName = cast.ToString(getOrReturnDefault("CARGOLINE_SERVICE_NAME", "cargoline"))
	cfg.HTTP.Addr = cast.ToString(getOrReturnDefault("CARGOLINE_HTTP_ADDR", ":8080"))
	cfg.DB.DSN = os.Getenv("CARGOLINE_DB_DSN")
	cfg.Redis.Addr = os.Getenv("CARGOLINE_REDIS_ADDR")

	cfg.Backend.Mode = cast.ToString(getOrReturnDefault("CARGOLINE_BACKEND_MODE", "fake"))
	cfg.Backend.BaseURL = cast.ToString(getOrReturnDefault("CARGOLINE_BACKEND_URL", "http://localhost:9000"))
	cfg.Backend.APIKey = os.Getenv("CARGOLINE_BACKEND_API_KEY")
	cfg.Backend.Timeout = time.Duration(cast.ToInt(getOrReturnDefault("CARGOLINE_BACKEND_TIMEOUT_MS", 5000))) * time.Millisecond

	cfg.Push.Mode = cast.ToString(getOrReturnDefault("CARGOLINE_PUSH_MODE", "log"))
	cfg.Push.Timeout = time.Duration(cast.ToInt(getOrReturnDefault("CARGOLINE_PUSH_TIMEOUT_MS", 3000))) * time.Millisecond

	cfg.Firebase.ProjectID = os.Getenv("CARGOLINE_FIREBASE_PROJECT_ID")
	cfg.Firebase.CredentialsFile = os.Getenv("CARGOLINE_FIREBASE_CREDENTIALS")

	cfg.Maps.APIKey = os.Getenv("CARGOLINE_MAPS_API_KEY")
	cfg.Maps.RouteTimeout = time.Duration(cast.ToInt(getOrReturnDefault("CARGOLINE_ROUTE_TIMEOUT_MS", 4000))) * time.Millisecond

	if v := os.Getenv("CARGOLINE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	cfg.Kafka.Topic = cast.ToString(getOrReturnDefault("CARGOLINE_KAFKA_TOPIC", "job.status.changed"))

	cfg.Matching.LocationFreshness = time.Duration(cast.ToInt(getOrReturnDefault("CARGOLINE_LOCATION_FRESHNESS_S", 300))) * time.Second

	return cfg
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
