package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"highbid/internal/domain"
	"highbid/internal/i18n"
	"highbid/internal/jobplatform"
)

type route struct {
	jobID string
	field string
	proof string
}

func (o *Orchestrator) route(kind domain.Kind) route {
	if kind == domain.KindSpeech {
		return route{jobID: o.speechJobID, field: jobplatform.FieldSpeechPrompt, proof: jobplatform.ProofSpeechURL}
	}
	return route{jobID: o.imageJobID, field: jobplatform.FieldImagePrompt, proof: jobplatform.ProofImageURL}
}

// Run drives an admitted record to a terminal state: submit (skipped when an
// earlier attempt already submitted), poll, then complete and charge or fail
// and release the reservation. The returned record reflects the final state.
//
// A canceled ctx leaves the record in flight so a later claim can resume it.
// Once an outcome is known, settling ignores cancellation: a completion is
// always followed by its charge attempt.
func (o *Orchestrator) Run(ctx context.Context, g *domain.Generation) (*domain.Generation, error) {
	started := time.Now()
	rt := o.route(g.Kind)
	log := o.logger.With().Str("generation_id", g.ID.String()).Str("kind", string(g.Kind)).Logger()
	settle := context.WithoutCancel(ctx)

	if rt.jobID == "" {
		log.Error().Msg("job id not configured")
		o.fail(settle, g, i18n.MsgServiceConfig, "submit_failed", 0, started)
		return g, fmt.Errorf("%w: %v", domain.ErrUpstreamSubmit, jobplatform.ErrMissingJobID)
	}

	matcher := jobplatform.Matcher{Field: rt.field, Key: g.MatchKey, CorrelationID: g.CorrelationID}

	var (
		outcome jobplatform.Outcome
		err     error
	)
	if g.Submitted() {
		log.Info().Int("attempts", g.Attempts).Msg("resuming submitted generation")
		outcome, err = o.platform.Resume(ctx, rt.jobID, matcher, rt.proof)
	} else {
		in := jobplatform.Input{Field: rt.field, Value: g.MatchKey, CorrelationID: g.CorrelationID}
		if err := o.platform.Submit(ctx, rt.jobID, in); err != nil {
			if ctx.Err() != nil {
				return g, ctx.Err()
			}
			log.Warn().Err(err).Msg("submit failed")
			o.fail(settle, g, submitMessage(err), "submit_failed", 0, started)
			return g, fmt.Errorf("%w: %v", domain.ErrUpstreamSubmit, err)
		}
		if err := o.repo.MarkSubmitted(settle, g.ID); err != nil {
			log.Warn().Err(err).Msg("record submission")
		} else {
			now := time.Now()
			g.SubmittedAt = &now
		}
		outcome, err = o.platform.Poll(ctx, rt.jobID, matcher, rt.proof)
	}

	if err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("generation interrupted, leaving for resume")
			return g, ctx.Err()
		}
		log.Warn().Err(err).Int("attempts", outcome.Attempts).Msg("poll failed")
		o.fail(settle, g, i18n.MsgPollFailed, "poll_failed", outcome.Attempts, started)
		return g, fmt.Errorf("%w: %v", domain.ErrUpstreamPoll, err)
	}

	switch outcome.State {
	case jobplatform.StateSucceeded:
		if outcome.URL == "" {
			o.fail(settle, g, noResultMessage(g.Kind), "no_result", outcome.Attempts, started)
			return g, nil
		}
		return o.complete(ctx, settle, g, outcome, started)
	case jobplatform.StateFailed:
		log.Info().Str("task_id", outcome.TaskID).Str("detail", outcome.Detail).Msg("task failed upstream")
		o.fail(settle, g, failedMessage(g.Kind), "failed", outcome.Attempts, started)
	default:
		log.Info().Str("detail", outcome.Detail).Msg("generation timed out")
		o.fail(settle, g, timeoutMessage(g.Kind, outcome.Detail), "timed_out", outcome.Attempts, started)
	}
	return g, nil
}

// complete settles under settle; only the archive copy follows ctx.
func (o *Orchestrator) complete(ctx, settle context.Context, g *domain.Generation, outcome jobplatform.Outcome, started time.Time) (*domain.Generation, error) {
	log := o.logger.With().Str("generation_id", g.ID.String()).Logger()

	ok, err := o.repo.Complete(settle, g.ID, outcome.URL)
	if err != nil {
		return g, fmt.Errorf("%w: complete generation: %v", domain.ErrPersistence, err)
	}
	if !ok {
		log.Warn().Msg("generation already terminal, skipping charge")
		return o.reload(settle, g), nil
	}
	g.Status = domain.GenerationCompleted
	g.ResultURL = outcome.URL
	o.metrics.Outcome(string(g.Kind), "completed", outcome.Attempts, time.Since(started))

	if _, err := o.ledger.ChargeGeneration(settle, g); err != nil {
		log.Error().Err(err).Str("cost", g.Cost.String()).Msg("charge failed, left for reconciliation")
		g.ChargeStatus = domain.ChargeFailed
	} else {
		g.ChargeStatus = domain.ChargeCharged
	}

	if o.archiver != nil {
		if key, err := o.archiver.Archive(ctx, g); err != nil {
			log.Warn().Err(err).Msg("archive result")
		} else if err := o.repo.SetArchiveKey(settle, g.ID, key); err != nil {
			log.Warn().Err(err).Str("archive_key", key).Msg("record archive key")
		} else {
			g.ArchiveKey = key
		}
	}
	return g, nil
}

// fail settles g as failed with a user-facing message. The reservation is
// released in the same statement.
func (o *Orchestrator) fail(ctx context.Context, g *domain.Generation, message, outcome string, attempts int, started time.Time) {
	ok, err := o.repo.Fail(ctx, g.ID, message)
	if err != nil {
		o.logger.Error().Err(err).Str("generation_id", g.ID.String()).Msg("mark generation failed")
		return
	}
	if !ok {
		*g = *o.reload(ctx, g)
		return
	}
	g.Status = domain.GenerationFailed
	g.ErrorMessage = message
	o.metrics.Outcome(string(g.Kind), outcome, attempts, time.Since(started))
}

func (o *Orchestrator) reload(ctx context.Context, g *domain.Generation) *domain.Generation {
	current, err := o.repo.GetByID(ctx, g.ID)
	if err != nil {
		return g
	}
	return current
}

func submitMessage(err error) string {
	var se *jobplatform.SubmitError
	if errors.As(err, &se) {
		return se.Message()
	}
	return i18n.MsgSubmitUnreachable
}

func failedMessage(kind domain.Kind) string {
	if kind == domain.KindSpeech {
		return i18n.MsgSpeechFailed
	}
	return i18n.MsgImageFailed
}

func timeoutMessage(kind domain.Kind, detail string) string {
	if kind == domain.KindSpeech {
		if detail == jobplatform.DetailNoTask {
			return i18n.MsgNoTask
		}
		return i18n.MsgSpeechTimeout
	}
	return i18n.MsgImageTimeout
}

func noResultMessage(kind domain.Kind) string {
	if kind == domain.KindSpeech {
		return i18n.MsgNoAudioURL
	}
	return i18n.MsgNoImageURL
}
