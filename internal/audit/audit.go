// Package audit records who performed which scheduling action.
package audit

import (
	"context"
	"log/slog"
)

// Sink receives one record per completed scheduling operation.
type Sink interface {
	Record(ctx context.Context, action string, identity string)
}

// LogSink writes audit records to the structured log.
type LogSink struct {
	Log *slog.Logger
}

func (s *LogSink) Record(ctx context.Context, action string, identity string) {
	s.Log.InfoContext(ctx, "audit", "action", action, "identity", identity)
}

// Discard drops all records. Used in tests.
type Discard struct{}

func (Discard) Record(ctx context.Context, action string, identity string) {}
