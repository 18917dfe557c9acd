package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"
)

const (
	FixtureSourceEmbedded    = "embedded"
	FixtureSourceObjectStore = "objectstore"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Store         StoreConfig
	Fixture       FixtureConfig
	ObjectStore   ObjectStoreConfig
	AI            AIConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StoreConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type FixtureConfig struct {
	AutoSeed   bool
	File       string
	RandomSeed int64
	Source     string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	RateLimit   float64
	Burst       int
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("QUERYPILOT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid QUERYPILOT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "QUERYPILOT_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "QUERYPILOT_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "QUERYPILOT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "QUERYPILOT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "QUERYPILOT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyLower(lookup, "QUERYPILOT_STORE_DRIVER", &cfg.Store.Driver) },
		func() error { return applyString(lookup, "QUERYPILOT_STORE_DSN", &cfg.Store.DSN) },
		func() error { return applyInt(lookup, "QUERYPILOT_STORE_MAX_OPEN_CONNS", &cfg.Store.MaxOpenConns) },
		func() error { return applyInt(lookup, "QUERYPILOT_STORE_MAX_IDLE_CONNS", &cfg.Store.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "QUERYPILOT_STORE_CONN_MAX_IDLE_TIME", &cfg.Store.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "QUERYPILOT_STORE_CONN_MAX_LIFETIME", &cfg.Store.ConnMaxLifetime)
		},
		func() error { return applyBool(lookup, "QUERYPILOT_STORE_AUTO_MIGRATE", &cfg.Store.AutoMigrate) },
		func() error { return applyBool(lookup, "QUERYPILOT_FIXTURE_AUTO_SEED", &cfg.Fixture.AutoSeed) },
		func() error { return applyString(lookup, "QUERYPILOT_FIXTURE_FILE", &cfg.Fixture.File) },
		func() error { return applyInt64(lookup, "QUERYPILOT_FIXTURE_RANDOM_SEED", &cfg.Fixture.RandomSeed) },
		func() error { return applyLower(lookup, "QUERYPILOT_FIXTURE_SOURCE", &cfg.Fixture.Source) },
		func() error { return applyString(lookup, "QUERYPILOT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "QUERYPILOT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "QUERYPILOT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "QUERYPILOT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "QUERYPILOT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "QUERYPILOT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "QUERYPILOT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "QUERYPILOT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyLower(lookup, "QUERYPILOT_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "QUERYPILOT_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "QUERYPILOT_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "QUERYPILOT_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "QUERYPILOT_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "QUERYPILOT_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyFloat(lookup, "QUERYPILOT_AI_RATE_LIMIT", &cfg.AI.RateLimit) },
		func() error { return applyInt(lookup, "QUERYPILOT_AI_BURST", &cfg.AI.Burst) },
		func() error { return applyBool(lookup, "QUERYPILOT_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "QUERYPILOT_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "QUERYPILOT_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "QUERYPILOT_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.Store.Driver {
	case DriverSQLite, DriverPostgres, DriverDuckDB:
	default:
		return Config{}, fmt.Errorf("invalid QUERYPILOT_STORE_DRIVER: %q", cfg.Store.Driver)
	}
	switch cfg.Fixture.Source {
	case FixtureSourceEmbedded, FixtureSourceObjectStore:
	default:
		return Config{}, fmt.Errorf("invalid QUERYPILOT_FIXTURE_SOURCE: %q", cfg.Fixture.Source)
	}
	switch cfg.AI.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("invalid QUERYPILOT_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	if cfg.AI.RateLimit < 0 {
		return Config{}, fmt.Errorf("QUERYPILOT_AI_RATE_LIMIT must be >= 0")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "querypilot-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Driver:          DriverSQLite,
			DSN:             "file:querypilot.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Fixture: FixtureConfig{
			AutoSeed:   true,
			File:       "",
			RandomSeed: 2024,
			Source:     FixtureSourceEmbedded,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "querypilot",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		AI: AIConfig{
			Provider:    ProviderGemini,
			BaseURL:     "",
			Model:       "",
			Temperature: 0,
			Timeout:     30 * time.Second,
			RateLimit:   0,
			Burst:       1,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Store.DSN = "file:querypilot-test?mode=memory&cache=shared"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.Fixture.AutoSeed = false
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyLower(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.ToLower(strings.TrimSpace(raw))
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
