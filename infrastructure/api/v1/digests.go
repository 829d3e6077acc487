package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/trialpulse/trialpulse/application/service"
	"github.com/trialpulse/trialpulse/domain/change"
	"github.com/trialpulse/trialpulse/domain/digest"
	"github.com/trialpulse/trialpulse/domain/entity"
	"github.com/trialpulse/trialpulse/domain/notify"
	"github.com/trialpulse/trialpulse/infrastructure/api/middleware"
	"github.com/trialpulse/trialpulse/internal/database"
)

// DigestsRouter handles digest preference and history endpoints.
type DigestsRouter struct {
	watchlist *service.Watchlist
	logger    *slog.Logger
}

// NewDigestsRouter creates a new DigestsRouter.
func NewDigestsRouter(watchlist *service.Watchlist, logger *slog.Logger) *DigestsRouter {
	return &DigestsRouter{watchlist: watchlist, logger: logger}
}

// Routes returns the chi router for digest endpoints.
func (r *DigestsRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/preferences", r.GetPreference)
	router.Put("/preferences", r.PutPreference)
	router.Get("/history", r.History)
	return router
}

// GetPreference handles GET /api/v1/digests/preferences?user_id=.
func (r *DigestsRouter) GetPreference(w http.ResponseWriter, req *http.Request) {
	userID := req.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	pref, err := r.watchlist.Preference(req.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "no digest preference for user")
			return
		}
		r.logger.Error("get preference failed", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load preference")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toPreferenceResponse(pref))
}

// PutPreference handles PUT /api/v1/digests/preferences. The request
// replaces the subscriber's settings wholesale.
func (r *DigestsRouter) PutPreference(w http.ResponseWriter, req *http.Request) {
	var body PreferenceRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pref, err := preferenceFromRequest(body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := r.watchlist.SavePreference(req.Context(), pref)
	if err != nil {
		r.logger.Error("save preference failed", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to save preference")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toPreferenceResponse(saved))
}

// History handles GET /api/v1/digests/history?user_id=&limit=.
func (r *DigestsRouter) History(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := r.watchlist.DigestHistory(req.Context(), userID, limit)
	if err != nil {
		r.logger.Error("digest history failed", slog.String("error", err.Error()))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load digest history")
		return
	}

	out := make([]DigestRecordResponse, len(records))
	for i, rec := range records {
		out[i] = toDigestRecordResponse(rec)
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

func preferenceFromRequest(body PreferenceRequest) (digest.Preference, error) {
	if body.UserID == "" {
		return digest.Preference{}, errors.New("user_id is required")
	}
	cadence, err := digest.ParseCadence(body.Cadence)
	if err != nil {
		return digest.Preference{}, err
	}
	if body.HourOfDay < 0 || body.HourOfDay > 23 {
		return digest.Preference{}, errors.New("hour_of_day must be between 0 and 23")
	}
	if body.DayOfWeek < 0 || body.DayOfWeek > 6 {
		return digest.Preference{}, errors.New("day_of_week must be between 0 and 6")
	}
	timezone := body.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return digest.Preference{}, errors.New("unknown timezone " + timezone)
	}

	pref := digest.NewPreference(body.UserID, cadence, time.Weekday(body.DayOfWeek), body.HourOfDay, timezone)

	if body.MinSignificance != "" {
		sig, err := change.ParseSignificance(body.MinSignificance)
		if err != nil {
			return digest.Preference{}, err
		}
		pref = pref.WithMinSignificance(sig)
	}
	for rawChannel, rawSig := range body.ChannelMinimums {
		channel := notify.Channel(rawChannel)
		if !channel.Valid() {
			return digest.Preference{}, errors.New("unknown channel " + rawChannel)
		}
		sig, err := change.ParseSignificance(rawSig)
		if err != nil {
			return digest.Preference{}, err
		}
		pref = pref.WithChannelMinimum(channel, sig)
	}
	if len(body.EntityTypes) > 0 {
		types := make([]entity.Type, 0, len(body.EntityTypes))
		for _, raw := range body.EntityTypes {
			t, err := entity.ParseType(raw)
			if err != nil {
				return digest.Preference{}, err
			}
			types = append(types, t)
		}
		pref = pref.WithEntityTypes(types)
	}
	pref = pref.WithWatchlistOnly(body.WatchlistOnly)
	if body.QuietHours != nil {
		if body.QuietHours.StartHour < 0 || body.QuietHours.StartHour > 23 ||
			body.QuietHours.EndHour < 0 || body.QuietHours.EndHour > 23 {
			return digest.Preference{}, errors.New("quiet hours must be between 0 and 23")
		}
		pref = pref.WithQuietHours(digest.NewQuietHours(body.QuietHours.StartHour, body.QuietHours.EndHour))
	}
	return pref, nil
}
