package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/trialpulse/trialpulse/application/service"
	apimiddleware "github.com/trialpulse/trialpulse/infrastructure/api/middleware"
	v1 "github.com/trialpulse/trialpulse/infrastructure/api/v1"
)

// APIServer provides the HTTP API over the detection and watchlist
// services.
type APIServer struct {
	detection    *service.Detection
	watchlist    *service.Watchlist
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// NewAPIServer creates a new APIServer wired to the given services.
func NewAPIServer(detection *service.Detection, watchlist *service.Watchlist, logger *slog.Logger) *APIServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIServer{
		detection: detection,
		watchlist: watchlist,
		logger:    logger,
	}
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call
// MountRoutes(). If not called, ListenAndServe creates a default router
// with all standard routes.
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all v1 API routes on the router.
func (a *APIServer) MountRoutes() {
	if a.router == nil {
		a.Router()
	}
	a.mountRoutes(a.router)
}

func (a *APIServer) mountRoutes(router chi.Router) {
	snapshotsRouter := v1.NewSnapshotsRouter(a.detection, a.logger)
	changesRouter := v1.NewChangesRouter(a.watchlist, a.logger)
	subscriptionsRouter := v1.NewSubscriptionsRouter(a.watchlist, a.logger)
	alertsRouter := v1.NewAlertsRouter(a.watchlist, a.logger)
	digestsRouter := v1.NewDigestsRouter(a.watchlist, a.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(apimiddleware.CorrelationID)
		r.Use(apimiddleware.Logging(a.logger))

		r.Mount("/snapshots", snapshotsRouter.Routes())
		r.Mount("/changes", changesRouter.Routes())
		r.Mount("/subscriptions", subscriptionsRouter.Routes())
		r.Mount("/alerts", alertsRouter.Routes())
		r.Mount("/digests", digestsRouter.Routes())
	})

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	server := NewServer(addr, a.logger)
	a.server = &server

	if a.routerCalled && a.router != nil {
		server.Router().Mount("/", a.router)
	} else {
		a.mountRoutes(server.Router())
	}

	return server.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom
// servers and tests.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.Router()
		a.MountRoutes()
	}
	return a.router
}
