// Package notify delivers job lifecycle events to external sinks.
package notify

import (
	"context"
	"log/slog"

	"cirelay/internal/store"
)

// Event is emitted exactly once when a job first reaches a terminal status.
type Event struct {
	Job        store.Job         `json:"job"`
	Components []store.Component `json:"components"`
	Topic      store.Topic       `json:"topic"`
	Remoteci   store.Remoteci    `json:"remoteci"`
	Status     store.JobStatus   `json:"status"`
	// States is the job's full jobstate trail, the closest thing to
	// aggregated results this system tracks (test-result ingestion is
	// handled by an external collaborator).
	States []store.JobState `json:"states"`
}

// Dispatcher is the interface that event sinks must satisfy. Dispatch failures
// must not affect the transaction that produced the event; callers log and
// move on.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// LogDispatcher writes events to the structured log. It is the fallback when
// no webhook is configured.
type LogDispatcher struct {
	Log *slog.Logger
}

func (d *LogDispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.Log.InfoContext(ctx, "job finished",
		"job_id", ev.Job.ID,
		"status", ev.Status,
		"topic", ev.Topic.Name,
		"remoteci", ev.Remoteci.Name,
		"components", len(ev.Components),
	)
	return nil
}
