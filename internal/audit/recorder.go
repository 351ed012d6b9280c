package audit

import (
	"context"
	"time"

	"github.com/nerrad567/lightify2mqtt/internal/bridges/lightify"
)

// writeTimeout bounds one audit insert.
const writeTimeout = 2 * time.Second

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// CommandRecorder turns bridge command records into audit logs.
// It satisfies lightify.AuditRecorder.
type CommandRecorder struct {
	repo   Repository
	logger Logger
}

// NewCommandRecorder creates a recorder writing to repo.
func NewCommandRecorder(repo Repository, logger Logger) *CommandRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CommandRecorder{repo: repo, logger: logger}
}

// RecordCommand stores rec. Write failures are logged, never returned; the
// command itself has already been sent.
func (c *CommandRecorder) RecordCommand(ctx context.Context, rec lightify.CommandRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := c.repo.Create(ctx, EntryFromCommand(rec)); err != nil {
		c.logger.Warn("failed to write audit log", "target", rec.Target, "error", err)
	}
}

// EntryFromCommand builds the audit log for one dispatch attempt.
func EntryFromCommand(rec lightify.CommandRecord) *AuditLog {
	entityType := EntityLight
	if rec.Broadcast() {
		entityType = EntityAll
	}

	params := make(map[string]any, len(rec.Params))
	for key := range rec.Params {
		params[key] = rec.Params.Get(key)
	}

	details := map[string]any{
		"target":      rec.Target,
		"params":      params,
		"result":      "ok",
		"duration_ms": rec.Duration.Milliseconds(),
	}
	if rec.Err != nil {
		details["result"] = "error"
		details["error"] = rec.Err.Error()
	}

	return &AuditLog{
		Action:     ActionCommand,
		EntityType: entityType,
		EntityID:   rec.DeviceID,
		Source:     rec.Source,
		Details:    details,
	}
}
