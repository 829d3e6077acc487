package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/trialpulse/trialpulse/application/service"
	"github.com/trialpulse/trialpulse/domain/query"
	"github.com/trialpulse/trialpulse/domain/watch"
	"github.com/trialpulse/trialpulse/infrastructure/api/middleware"
	"github.com/trialpulse/trialpulse/internal/database"
)

// AlertsRouter handles alert endpoints.
type AlertsRouter struct {
	watchlist *service.Watchlist
	logger    *slog.Logger
}

// NewAlertsRouter creates a new AlertsRouter.
func NewAlertsRouter(watchlist *service.Watchlist, logger *slog.Logger) *AlertsRouter {
	return &AlertsRouter{watchlist: watchlist, logger: logger}
}

// Routes returns the chi router for alert endpoints.
func (r *AlertsRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", r.List)
	router.Post("/{alertID}/read", r.Acknowledge)
	router.Post("/{alertID}/dismiss", r.Dismiss)
	return router
}

// List handles GET /api/v1/alerts?user_id=&status=.
func (r *AlertsRouter) List(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	var options []query.Option
	if raw := q.Get("status"); raw != "" {
		status := watch.Status(raw)
		if !status.Valid() {
			middleware.WriteError(w, http.StatusBadRequest, "unknown status "+raw)
			return
		}
		options = append(options, watch.WithStatus(status))
	}

	alerts, err := r.watchlist.Alerts(req.Context(), userID, options...)
	if err != nil {
		r.logger.Error("list alerts failed", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	out := make([]AlertResponse, len(alerts))
	for i, alert := range alerts {
		out[i] = toAlertResponse(alert)
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Acknowledge handles POST /api/v1/alerts/{alertID}/read.
func (r *AlertsRouter) Acknowledge(w http.ResponseWriter, req *http.Request) {
	r.transition(w, req, r.watchlist.Acknowledge)
}

// Dismiss handles POST /api/v1/alerts/{alertID}/dismiss.
func (r *AlertsRouter) Dismiss(w http.ResponseWriter, req *http.Request) {
	r.transition(w, req, r.watchlist.Dismiss)
}

func (r *AlertsRouter) transition(
	w http.ResponseWriter,
	req *http.Request,
	move func(ctx context.Context, userID string, alertID int64) (watch.Alert, error),
) {
	userID := req.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	alertID, err := strconv.ParseInt(chi.URLParam(req, "alertID"), 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	alert, err := move(req.Context(), userID, alertID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			middleware.WriteError(w, http.StatusNotFound, "alert not found")
		case errors.Is(err, watch.ErrInvalidTransition):
			middleware.WriteError(w, http.StatusConflict, err.Error())
		default:
			r.logger.Error("alert transition failed", slog.String("error", err.Error()))
			middleware.WriteError(w, http.StatusInternalServerError, "failed to update alert")
		}
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toAlertResponse(alert))
}
