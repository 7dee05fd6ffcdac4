package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the defaults of a named profile with environment
// overrides applied, validated.
func LoadProfile(name string) (*Config, error) {
	cfg, err := profileDefaults(name)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

func profileDefaults(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name

	switch Environment(name) {
	case "default":

	case EnvDevelopment:
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
		cfg.Session.TransitionDelay = time.Second

	case EnvTesting:
		cfg.Environment = EnvTesting
		cfg.Logging.Level = "warn"
		cfg.Leaderboard.Dispatch = "sync"
		cfg.Session.TransitionDelay = 0
		cfg.Analytics.ReportInterval = time.Minute

	case EnvStaging:
		cfg.Environment = EnvStaging
		cfg.Storage.Adapter = AdapterSQL
		cfg.Storage.SQL.AutoMigrate = true
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit.RequestsPerMinute = 120
		cfg.Security.RateLimit.BurstSize = 20

	case EnvProduction:
		cfg.Environment = EnvProduction
		cfg.Storage.Adapter = AdapterPostgres
		cfg.Storage.Postgres.MaxConns = 25
		cfg.Storage.Postgres.AutoMigrate = true
		cfg.Server.CORSOrigin = ""
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit.RequestsPerMinute = 60
		cfg.Security.RateLimit.BurstSize = 10
		cfg.Logging.Attributes = map[string]string{"service": "partyboard"}

	default:
		return nil, fmt.Errorf("unknown profile %q (want development, testing, staging or production)", name)
	}
	return cfg, nil
}
