package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/roadmapai/backend/internal/auth"
	"github.com/roadmapai/backend/internal/eventbus"
	"github.com/roadmapai/backend/internal/pathgen"
	"github.com/roadmapai/backend/internal/progress"
	"github.com/roadmapai/backend/internal/store/sqlite"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const publishMaxTries = 3

// PathHandler serves learning-path intake, progress reads, and the record
// listing/detail endpoints.
type PathHandler struct {
	bus      eventbus.Bus
	progress progress.Store
	store    *sqlite.Store
}

func NewPathHandler(bus eventbus.Bus, prog progress.Store, store *sqlite.Store) *PathHandler {
	return &PathHandler{bus: bus, progress: prog, store: store}
}

// Create validates the request, seeds the progress snapshot, publishes the
// work-requested event, and returns without waiting for generation.
func (h *PathHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req CreatePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	traceID := uuid.NewString()
	ctx := r.Context()

	// Progress is best-effort: an unavailable snapshot store must not fail
	// the request, the worker will be dispatched regardless.
	err := h.progress.Set(ctx, traceID, progress.Record{
		Stage:    pathgen.StageAnalyzing,
		Message:  fmt.Sprintf("Analyzing your background for %s...", req.Topic),
		Progress: 5,
	})
	if err != nil {
		slog.WarnContext(ctx, "initial progress write failed", "trace_id", traceID, "error", err)
	}

	event := pathgen.WorkRequest{
		UserID:      identity.UserID,
		Topic:       req.Topic,
		Background:  req.Background,
		GoalLevel:   pathgen.GoalLevel(req.GoalLevel),
		Preferences: req.Preferences,
		TraceID:     traceID,
		RequestedAt: time.Now().UTC(),
	}

	// The publish is load-bearing: without it no worker will ever pick the
	// trace up. Retry before acknowledging the caller, never after.
	if err := h.publishWithRetry(ctx, pathgen.TopicPathRequested, event); err != nil {
		slog.ErrorContext(ctx, "work request publish failed",
			"trace_id", traceID, "user_id", identity.UserID, "error", err)
		// Do not leave a stale analyzing snapshot for a trace no worker
		// will ever touch.
		if delErr := h.progress.Delete(ctx, traceID); delErr != nil {
			slog.WarnContext(ctx, "stale progress cleanup failed", "trace_id", traceID, "error", delErr)
		}
		writeError(w, http.StatusBadGateway, "dispatch_failed", "could not dispatch generation request")
		return
	}

	slog.InfoContext(ctx, "learning path requested",
		"trace_id", traceID, "user_id", identity.UserID, "topic", req.Topic)

	writeJSON(w, http.StatusAccepted, CreatePathResponse{
		TraceID:   traceID,
		Status:    "processing",
		StatusURL: "/api/learning-paths/status/" + traceID,
	})
}

func (h *PathHandler) publishWithRetry(ctx context.Context, topic string, event any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, h.bus.Publish(ctx, topic, event)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(publishMaxTries))
	return err
}

// List returns the caller's reconciled records, newest first.
func (h *PathHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	paths, err := h.store.ListPathsByUser(r.Context(), identity.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "list paths failed", "user_id", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "")
		return
	}

	out := make([]PathResponse, 0, len(paths))
	for _, p := range paths {
		out = append(out, mapPathToResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns one record, ownership-checked. A record owned by someone else
// reads as not found.
func (h *PathHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := h.store.GetPathByID(r.Context(), id)
	if errors.Is(err, sqlite.ErrPathNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "get path failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "")
		return
	}
	if rec.UserID != identity.UserID {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}

	writeJSON(w, http.StatusOK, mapPathToResponse(rec))
}

// Status returns the current progress snapshot for a trace.
func (h *PathHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceId")

	rec, err := h.progress.Get(r.Context(), traceID)
	if errors.Is(err, progress.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "progress read failed", "trace_id", traceID, "error", err)
		writeError(w, http.StatusInternalServerError, "status_failed", "")
		return
	}

	writeJSON(w, http.StatusOK, mapProgressToResponse(traceID, rec))
}

// StreamStatus streams progress snapshots for a trace as server-sent events:
// the current snapshot first, then every subsequent write until the trace
// reaches a terminal stage or the client disconnects.
func (h *PathHandler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceId")
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "")
		return
	}

	// Subscribe before reading the current snapshot. The other order loses
	// any write landing between the two calls; if that write is the terminal
	// one, nothing further ever arrives and the stream hangs.
	sub, err := h.progress.Subscribe(ctx, traceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "subscribe_failed", "")
		return
	}
	defer sub.Close()

	current, err := h.progress.Get(ctx, traceID)
	if errors.Is(err, progress.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status_failed", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, traceID, current)
	flusher.Flush()
	if current.Stage.Terminal() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case rec, open := <-sub.Updates():
			if !open {
				return
			}
			// The snapshot sent above may also arrive through the
			// subscription when its write raced the Get.
			if rec.Timestamp.Equal(current.Timestamp) && rec.Stage == current.Stage && rec.Progress == current.Progress {
				continue
			}
			writeSSE(w, traceID, rec)
			flusher.Flush()
			if rec.Stage.Terminal() {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, traceID string, rec progress.Record) {
	payload, err := json.Marshal(mapProgressToResponse(traceID, rec))
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func mapPathToResponse(p *sqlite.PathRecord) PathResponse {
	return PathResponse{
		ID:        p.ID,
		TraceID:   p.TraceID,
		Topic:     p.Topic,
		GoalLevel: p.GoalLevel,
		Status:    p.Status,
		Content:   p.Content,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapProgressToResponse(traceID string, rec progress.Record) ProgressResponse {
	return ProgressResponse{
		TraceID:   traceID,
		Stage:     string(rec.Stage),
		Message:   rec.Message,
		Progress:  rec.Progress,
		Data:      rec.Data,
		Timestamp: rec.Timestamp.UnixMilli(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
