package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/trialpulse/trialpulse/application/service"
	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/notify"
	"github.com/trialpulse/trialpulse/domain/watch"
	"github.com/trialpulse/trialpulse/infrastructure/api/middleware"
	"github.com/trialpulse/trialpulse/internal/database"
)

// SubscriptionsRouter handles watchlist endpoints.
type SubscriptionsRouter struct {
	watchlist *service.Watchlist
	logger    *slog.Logger
}

// NewSubscriptionsRouter creates a new SubscriptionsRouter.
func NewSubscriptionsRouter(watchlist *service.Watchlist, logger *slog.Logger) *SubscriptionsRouter {
	return &SubscriptionsRouter{watchlist: watchlist, logger: logger}
}

// Routes returns the chi router for subscription endpoints.
func (r *SubscriptionsRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", r.List)
	router.Post("/", r.Create)
	router.Delete("/", r.Delete)
	return router
}

// List handles GET /api/v1/subscriptions?user_id=.
func (r *SubscriptionsRouter) List(w http.ResponseWriter, req *http.Request) {
	userID := req.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	subs, err := r.watchlist.Subscriptions(req.Context(), userID)
	if err != nil {
		r.logger.Error("list subscriptions failed", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	out := make([]SubscriptionResponse, len(subs))
	for i, sub := range subs {
		out[i] = toSubscriptionResponse(sub)
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Create handles POST /api/v1/subscriptions. Posting an already-watched
// entity replaces the kind and channel flags.
func (r *SubscriptionsRouter) Create(w http.ResponseWriter, req *http.Request) {
	var body SubscriptionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.UserID == "" || body.EntityID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and entity_id are required")
		return
	}

	entityType, err := entity.ParseType(body.EntityType)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	kinds := watch.AllKindsEnabled()
	if len(body.Kinds) > 0 {
		kinds = map[change.Kind]bool{}
		for _, raw := range body.Kinds {
			kind, err := change.ParseKind(raw)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			kinds[kind] = true
		}
	}

	channels := map[notify.Channel]bool{}
	for _, raw := range body.Channels {
		channel := notify.Channel(raw)
		if !channel.Valid() {
			middleware.WriteError(w, http.StatusBadRequest, "unknown channel "+raw)
			return
		}
		channels[channel] = true
	}

	ref := entity.NewRef(entityType, body.EntityID, body.EntityName)
	sub, err := r.watchlist.Watch(req.Context(), body.UserID, ref, kinds, channels)
	if err != nil {
		r.logger.Error("create subscription failed", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

// Delete handles DELETE /api/v1/subscriptions?user_id=&entity_type=&entity_id=.
func (r *SubscriptionsRouter) Delete(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	userID := q.Get("user_id")
	entityID := q.Get("entity_id")
	entityType, err := entity.ParseType(q.Get("entity_type"))
	if userID == "" || entityID == "" || err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "user_id, entity_type and entity_id are required")
		return
	}

	if err := r.watchlist.Unwatch(req.Context(), userID, entityType, entityID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "subscription not found")
			return
		}
		r.logger.Error("delete subscription failed", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	middleware.WriteJSON(w, http.StatusNoContent, nil)
}
