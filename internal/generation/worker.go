package generation

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"highbid/internal/domain"
	"highbid/internal/infra"
)

// Worker claims admitted records from the queue and runs them. Each of its
// goroutines holds at most one lease at a time.
type Worker struct {
	orch        *Orchestrator
	repo        domain.GenerationRepository
	concurrency int
	lease       time.Duration
	interval    time.Duration
	logger      *infra.Logger
}

func NewWorker(orch *Orchestrator, repo domain.GenerationRepository, cfg infra.GenerationConfig, logger *infra.Logger) *Worker {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	w := &Worker{
		orch:        orch,
		repo:        repo,
		concurrency: cfg.WorkerConcurrency,
		lease:       cfg.LeaseDuration,
		interval:    cfg.ClaimInterval,
		logger:      logger,
	}
	if w.concurrency < 1 {
		w.concurrency = 1
	}
	if w.lease <= 0 {
		w.lease = 15 * time.Minute
	}
	if w.interval <= 0 {
		w.interval = 2 * time.Second
	}
	return w
}

// Run blocks until ctx is done and every in-flight generation has returned.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("concurrency", w.concurrency).Dur("lease", w.lease).Msg("worker: started")

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}
	wg.Wait()

	w.logger.Info().Msg("worker: stopped")
	return ctx.Err()
}

func (w *Worker) loop(ctx context.Context, slot int) {
	for {
		if ctx.Err() != nil {
			return
		}
		worked, err := w.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error().Err(err).Int("slot", slot).Msg("worker: claim failed")
		}
		if worked {
			continue
		}
		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunOnce claims and runs a single record. It reports false when the queue
// was empty.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	g, err := w.repo.Claim(ctx, w.lease)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	w.logger.Info().
		Str("generation_id", g.ID.String()).
		Str("kind", string(g.Kind)).
		Int("attempt", g.Attempts).
		Bool("submitted", g.Submitted()).
		Msg("worker: picked generation")

	final, err := w.orch.Run(ctx, g)
	switch {
	case err == nil:
		w.logger.Info().Str("generation_id", g.ID.String()).Str("status", string(final.Status)).Msg("worker: generation settled")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		w.logger.Info().Str("generation_id", g.ID.String()).Msg("worker: generation interrupted")
	default:
		w.logger.Warn().Err(err).Str("generation_id", g.ID.String()).Str("status", string(final.Status)).Msg("worker: generation failed")
	}
	return true, nil
}
