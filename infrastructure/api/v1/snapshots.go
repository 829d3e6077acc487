package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/trialpulse/trialpulse/application/service"
	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/infrastructure/api/middleware"
)

// SnapshotsRouter handles snapshot ingest endpoints.
type SnapshotsRouter struct {
	detection *service.Detection
	logger    *slog.Logger
}

// NewSnapshotsRouter creates a new SnapshotsRouter.
func NewSnapshotsRouter(detection *service.Detection, logger *slog.Logger) *SnapshotsRouter {
	return &SnapshotsRouter{detection: detection, logger: logger}
}

// Routes returns the chi router for snapshot endpoints.
func (r *SnapshotsRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/", r.Ingest)
	return router
}

// Ingest handles POST /api/v1/snapshots. The write is idempotent per
// entity per day; re-posting the same feed is safe.
func (r *SnapshotsRouter) Ingest(w http.ResponseWriter, req *http.Request) {
	var body SnapshotRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entityType, err := entity.ParseType(body.EntityType)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.EntityID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "entity_id is required")
		return
	}

	date := time.Now().UTC()
	if body.Date != "" {
		date, err = time.Parse("2006-01-02", body.Date)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	snap, err := r.detection.Observe(req.Context(), entityType, body.EntityID, date, body.Payload)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPayload) || errors.Is(err, service.ErrUnknownEntityType) {
			middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		r.logger.Error("snapshot ingest failed", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to store snapshot")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, toSnapshotResponse(snap))
}
