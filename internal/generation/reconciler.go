package generation

import (
	"context"
	"io"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"highbid/internal/domain"
	"highbid/internal/infra"
)

const (
	reconcileBatch = 100
	// completed records left uncharged this long lost their charge attempt
	reconcileGrace = 10 * time.Minute
)

// Reconciler retries charges of completed generations whose debit failed or
// never ran.
type Reconciler struct {
	repo   domain.GenerationRepository
	ledger Ledger
	logger *infra.Logger
}

func NewReconciler(repo domain.GenerationRepository, ledger Ledger, logger *infra.Logger) *Reconciler {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Reconciler{repo: repo, ledger: ledger, logger: logger}
}

// Reconcile charges one batch and returns how many debits it made.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	pending, err := r.repo.ListUncharged(ctx, reconcileGrace, reconcileBatch)
	if err != nil {
		return 0, err
	}
	charged := 0
	for i := range pending {
		if ctx.Err() != nil {
			return charged, ctx.Err()
		}
		g := &pending[i]
		ok, err := r.ledger.ChargeGeneration(ctx, g)
		if err != nil {
			r.logger.Warn().Err(err).Str("generation_id", g.ID.String()).Msg("reconcile: charge still failing")
			continue
		}
		if ok {
			charged++
		}
	}
	if len(pending) > 0 {
		r.logger.Info().Int("pending", len(pending)).Int("charged", charged).Msg("reconcile: pass finished")
	}
	return charged, nil
}

// Schedule registers Reconcile on c. Runs never overlap.
func (r *Reconciler) Schedule(ctx context.Context, c *cron.Cron, schedule string) (cron.EntryID, error) {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		if _, err := r.Reconcile(ctx); err != nil {
			r.logger.Error().Err(err).Msg("reconcile: pass failed")
		}
	}))
	return c.AddJob(schedule, job)
}
