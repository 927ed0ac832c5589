package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/lock"
	"github.com/madhvv-7/E-waste-madhav/internal/models"
)

const (
	requestTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

type actorKey struct{}

// WithActor stores the authenticated actor on ctx.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor the auth middleware attached to ctx.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok && actor.ID != ""
}

func contextWithTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// getParam returns a pat path parameter, falling back to the plain query and
// the net/http PathValue API.
func getParam(r *http.Request, name string) string {
	if val := r.URL.Query().Get(":" + name); val != "" {
		return val
	}
	if val := r.URL.Query().Get(name); val != "" {
		return val
	}
	return r.PathValue(name)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.Wrap(models.ErrValidation, "request body is empty")
		}
		return errors.Wrap(models.ErrValidation, "invalid request body: "+err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handlers: encode response: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps a service failure onto an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrAccountNotActive):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrAlreadyResolved),
		errors.Is(err, models.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidAgent),
		errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, lock.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError reports err to the client. Internal failures are logged and
// replaced by a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := strings.TrimPrefix(publicMessage(err), "models: ")
	if status == http.StatusInternalServerError {
		log.Printf("handlers: %+v", err)
		msg = http.StatusText(status)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// publicMessage drops the sentinel suffix so clients see "account x is
// pending, cannot move to pending" rather than the wrapped chain.
func publicMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": models: "); i > 0 {
		return msg[:i]
	}
	return msg
}

func requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
	}
	return actor, ok
}
