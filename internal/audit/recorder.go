package audit

import (
	"context"
	"time"

	"github.com/nerrad567/homectl-core/internal/registry"
)

// writeTimeout bounds a single audit insert.
const writeTimeout = 2 * time.Second

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder is a registry.Observer that writes every record to a Repository.
// Write failures are logged and never reach the registry caller.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder writing to repo. logger may be nil.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, logger: logger}
}

// Observe implements registry.Observer.
func (r *Recorder) Observe(ctx context.Context, rec registry.Record) {
	log := FromRecord(rec)

	// Detached from the caller's cancellation, bounded by writeTimeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, &log); err != nil {
		r.logger.Warn("failed to write audit log",
			"op", rec.Op,
			"integration_id", rec.IntegrationID,
			"error", err,
		)
	}
}

// FromRecord converts a registry record into an audit log entry.
func FromRecord(rec registry.Record) AuditLog {
	log := AuditLog{
		Op:            string(rec.Op),
		IntegrationID: string(rec.IntegrationID),
		Kind:          rec.Kind,
		DeviceID:      rec.DeviceID,
		Action:        rec.Action,
		DurationMs:    rec.Duration.Milliseconds(),
		CreatedAt:     rec.Time.UTC(),
	}
	if rec.Err != nil {
		log.Error = rec.Err.Error()
	}
	return log
}
