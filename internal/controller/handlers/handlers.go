// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"cirelay/internal/authz"
	"cirelay/internal/cierr"
	"cirelay/internal/scheduler"
	"cirelay/pkg/api"
)

// StoreFactory combines the interfaces needed for the controller to function.
type StoreFactory interface {
	scheduler.Store
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store  StoreFactory
	sched  *scheduler.Scheduler
	policy *authz.Policy
	log    *slog.Logger
}

// New creates a new Handlers instance.
func New(s StoreFactory, sched *scheduler.Scheduler, policy *authz.Policy, log *slog.Logger) *Handlers {
	return &Handlers{store: s, sched: sched, policy: policy, log: log}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  http.StatusText(code),
	})
}

// schedError maps domain error kinds onto HTTP status codes.
func (h *Handlers) schedError(w http.ResponseWriter, err error) {
	kind, ok := cierr.KindOf(err)
	if !ok {
		h.log.Error("handler error", "error", err)
		h.httpError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	code := http.StatusInternalServerError
	switch kind {
	case cierr.KindNotFound:
		code = http.StatusNotFound
	case cierr.KindForbidden:
		code = http.StatusForbidden
	case cierr.KindPreconditionFailed:
		code = http.StatusPreconditionFailed
	case cierr.KindConflict:
		code = http.StatusConflict
	case cierr.KindInvalid:
		code = http.StatusBadRequest
	}

	h.respondJson(w, code, api.ErrorResponse{
		Error: err.Error(),
		Code:  kind.String(),
	})
}
