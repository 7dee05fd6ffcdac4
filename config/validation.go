package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"partyboard/core"
)

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}
	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}
	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}
	if s.ShareURL != "" {
		if err := validateHTTPURL(s.ShareURL); err != nil {
			errs = append(errs, fmt.Sprintf("share_url: %v", err))
		}
	}

	return joinErrs(errs)
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	validAdapters := []string{AdapterMemory, AdapterFile, AdapterRedis, AdapterSQL, AdapterPostgres}
	if !slices.Contains(validAdapters, s.Adapter) {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(validAdapters, ", ")))
	}

	// Validate adapter-specific configs
	switch s.Adapter {
	case AdapterFile:
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case AdapterRedis:
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	case AdapterSQL:
		if err := s.SQL.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sql config: %v", err))
		}
	case AdapterPostgres:
		if s.Postgres.DSN == "" {
			errs = append(errs, "postgres config: dsn cannot be empty")
		}
		if s.Postgres.MaxConns <= 0 {
			errs = append(errs, "postgres config: max_conns must be positive")
		}
	}

	return joinErrs(errs)
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates the leaderboard API settings.
func (l *LeaderboardConfig) Validate() error {
	var errs []string
	if l.DefaultLimit < 1 || l.DefaultLimit > core.MaxLimit {
		errs = append(errs, fmt.Sprintf("default_limit must be between 1 and %d", core.MaxLimit))
	}
	if l.MaxBodyBytes <= 0 {
		errs = append(errs, "max_body_bytes must be positive")
	}
	if l.Dispatch != "sync" && l.Dispatch != "async" {
		errs = append(errs, "dispatch must be one of: sync, async")
	}
	return joinErrs(errs)
}

// Validate validates session settings. Game ids are checked against the
// registry when the session is built.
func (s *SessionConfig) Validate() error {
	var errs []string
	if s.TransitionDelay < 0 {
		errs = append(errs, "transition_delay cannot be negative")
	}
	if s.LeaderboardLimit < 1 || s.LeaderboardLimit > core.MaxLimit {
		errs = append(errs, fmt.Sprintf("leaderboard_limit must be between 1 and %d", core.MaxLimit))
	}
	if s.FrameInterval <= 0 {
		errs = append(errs, "frame_interval must be positive")
	}
	for i, id := range s.Sequence {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Sprintf("sequence[%d] is empty", i))
		}
	}
	return joinErrs(errs)
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, l.Level) {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(validLevels, ", ")))
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, l.Format) {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(validFormats, ", ")))
	}

	validOutputs := []string{"stdout", "stderr"}
	if !slices.Contains(validOutputs, l.Output) {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(validOutputs, ", ")))
	}

	return joinErrs(errs)
}

// Validate validates analytics configuration
func (a *AnalyticsConfig) Validate() error {
	var errs []string

	if a.Enabled {
		if a.ReportInterval <= 0 {
			errs = append(errs, "report_interval must be positive when analytics are enabled")
		}
		if a.ExportURL != "" {
			if err := validateHTTPURL(a.ExportURL); err != nil {
				errs = append(errs, fmt.Sprintf("export_url: %v", err))
			}
			if a.ExportBatch <= 0 {
				errs = append(errs, "export_batch must be positive")
			}
		}
	}

	return joinErrs(errs)
}

// Validate validates webhook configuration
func (w *WebhookConfig) Validate() error {
	var errs []string

	for i, e := range w.Endpoints {
		if err := validateHTTPURL(e); err != nil {
			errs = append(errs, fmt.Sprintf("endpoints[%d]: %v", i, err))
		}
	}
	known := []string{
		string(core.EventScoreCreated),
		string(core.EventScoreImproved),
		string(core.EventScoreRejected),
		string(core.EventNewLeader),
	}
	for _, e := range w.Events {
		if !slices.Contains(known, e) {
			errs = append(errs, fmt.Sprintf("unknown event %q", e))
		}
	}
	if len(w.Endpoints) > 0 && w.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}

	return joinErrs(errs)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host cannot be empty")
	}
	return nil
}
