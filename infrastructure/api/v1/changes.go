package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/trialpulse/trialpulse/application/service"
	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/query"
	"github.com/trialpulse/trialpulse/infrastructure/api/middleware"
)

// ChangesRouter handles change ledger endpoints.
type ChangesRouter struct {
	watchlist *service.Watchlist
	logger    *slog.Logger
}

// NewChangesRouter creates a new ChangesRouter.
func NewChangesRouter(watchlist *service.Watchlist, logger *slog.Logger) *ChangesRouter {
	return &ChangesRouter{watchlist: watchlist, logger: logger}
}

// Routes returns the chi router for change endpoints.
func (r *ChangesRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", r.List)
	router.Get("/pending", r.Pending)
	return router
}

// List handles GET /api/v1/changes with entity, kind, significance and
// recency filters.
func (r *ChangesRouter) List(w http.ResponseWriter, req *http.Request) {
	options, ok := r.parseFilters(w, req)
	if !ok {
		return
	}
	options = append(options, query.WithOrderDesc("detected_at"))

	records, err := r.watchlist.Changes(req.Context(), options...)
	if err != nil {
		r.logger.Error("list changes failed", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list changes")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toChangeResponses(records))
}

// Pending handles GET /api/v1/changes/pending?user_id=. Records are
// ordered most significant first and remain pending until a digest
// delivers them.
func (r *ChangesRouter) Pending(w http.ResponseWriter, req *http.Request) {
	userID := req.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	options, ok := r.parseFilters(w, req)
	if !ok {
		return
	}

	records, err := r.watchlist.PendingChanges(req.Context(), userID, options...)
	if err != nil {
		r.logger.Error("list pending changes failed", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list pending changes")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toChangeResponses(records))
}

func (r *ChangesRouter) parseFilters(w http.ResponseWriter, req *http.Request) ([]query.Option, bool) {
	var options []query.Option
	q := req.URL.Query()

	if raw := q.Get("entity_type"); raw != "" {
		entityType, err := entity.ParseType(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		if id := q.Get("entity_id"); id != "" {
			options = append(options, change.WithEntity(entityType, id)...)
		} else {
			options = append(options, change.WithEntityTypeIn([]entity.Type{entityType}))
		}
	}
	if raw := q.Get("kind"); raw != "" {
		kind, err := change.ParseKind(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		options = append(options, change.WithKind(kind))
	}
	if raw := q.Get("min_significance"); raw != "" {
		sig, err := change.ParseSignificance(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		options = append(options, change.WithMinSignificance(sig))
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse("2006-01-02", raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return nil, false
		}
		options = append(options, change.WithDetectedSince(since))
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return nil, false
		}
		options = append(options, query.WithLimit(limit))
	}

	return options, true
}
