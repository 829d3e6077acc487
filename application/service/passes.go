package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trialpulse/trialpulse/domain/snapshot"
	"github.com/trialpulse/trialpulse/internal/config"
)

// Passes runs the detection and digest passes on fixed intervals in serve
// mode. Deployments with an external scheduler disable it and invoke the
// CLI commands instead; the pipeline itself holds no timers.
type Passes struct {
	detection *Detection
	matcher   *Matcher
	router    *Router
	digest    *Digest
	logger    *slog.Logger

	enabled           bool
	detectionInterval time.Duration
	digestInterval    time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPasses creates a Passes runner from config and the pass services.
func NewPasses(
	cfg config.PassesConfig,
	detection *Detection,
	matcher *Matcher,
	router *Router,
	digest *Digest,
	logger *slog.Logger,
) *Passes {
	return &Passes{
		detection:         detection,
		matcher:           matcher,
		router:            router,
		digest:            digest,
		logger:            logger,
		enabled:           cfg.Enabled(),
		detectionInterval: cfg.DetectionInterval(),
		digestInterval:    cfg.DigestInterval(),
	}
}

// Start begins the periodic passes in background goroutines.
// If disabled, this is a no-op.
func (p *Passes) Start(ctx context.Context) {
	if !p.enabled {
		p.logger.Info("periodic passes disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Go(func() {
		p.loop(ctx, p.detectionInterval, p.detectionPass)
	})
	p.wg.Go(func() {
		p.loop(ctx, p.digestInterval, p.digestPass)
	})

	p.logger.Info("periodic passes started",
		slog.Duration("detection_interval", p.detectionInterval),
		slog.Duration("digest_interval", p.digestInterval),
	)
}

// Stop cancels the background goroutines and waits for them to finish.
func (p *Passes) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.logger.Info("periodic passes stopped")
}

func (p *Passes) loop(ctx context.Context, interval time.Duration, pass func(context.Context)) {
	// Run immediately on startup.
	pass(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pass(ctx)
		}
	}
}

// detectionPass runs detect, match and route for the current day. Each
// invocation gets a run id so the three stages correlate in the logs.
func (p *Passes) detectionPass(ctx context.Context) {
	now := time.Now()
	day := snapshot.Day(now)
	logger := p.logger.With(slog.String("run_id", uuid.NewString()))

	if _, err := p.detection.Run(ctx, day); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("detection pass failed", slog.String("error", err.Error()))
		return
	}

	if _, err := p.matcher.MatchSince(ctx, day); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("match pass failed", slog.String("error", err.Error()))
		return
	}

	if _, err := p.router.Route(ctx, now); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("routing pass failed", slog.String("error", err.Error()))
	}
}

func (p *Passes) digestPass(ctx context.Context) {
	logger := p.logger.With(slog.String("run_id", uuid.NewString()))
	if _, err := p.digest.Run(ctx, time.Now()); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("digest pass failed", slog.String("error", err.Error()))
	}
}
