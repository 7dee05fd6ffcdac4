package analytics

import (
	"context"
	"log/slog"
	"time"
)

// Reporter periodically snapshots metrics and hands them to an exporter.
type Reporter struct {
	metrics  *SubmissionMetrics
	exporter Exporter
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewReporter(metrics *SubmissionMetrics, exporter Exporter, interval time.Duration, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reporter{metrics: metrics, exporter: exporter, interval: interval, logger: logger, now: time.Now}
}

// ReportNow exports a single snapshot.
func (r *Reporter) ReportNow(ctx context.Context) error {
	return r.exporter.Export(ctx, r.metrics.Snapshot(r.now()))
}

// Start blocks until ctx is done, reporting on every tick. The exporter is
// flushed and closed on the way out.
func (r *Reporter) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer func() {
		if err := r.exporter.Close(); err != nil {
			r.logger.Warn("stats exporter close failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.ReportNow(ctx); err != nil {
				r.logger.Warn("stats export failed", "error", err)
			}
		}
	}
}
