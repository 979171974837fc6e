// Package generation admits metered requests, drives them through the job
// platform and settles the bill once the outcome is known.
package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"highbid/internal/domain"
	"highbid/internal/infra"
	"highbid/internal/jobplatform"
	"highbid/internal/metrics"
)

// Platform is the slice of the job platform client the orchestrator drives.
type Platform interface {
	Submit(ctx context.Context, jobID string, in jobplatform.Input) error
	Poll(ctx context.Context, jobID string, m jobplatform.Matcher, field string) (jobplatform.Outcome, error)
	Resume(ctx context.Context, jobID string, m jobplatform.Matcher, field string) (jobplatform.Outcome, error)
}

type Prices interface {
	QuoteImage(ctx context.Context, size string) domain.Quote
	QuoteSpeech(ctx context.Context, text string) domain.Quote
}

type Ledger interface {
	Balance(ctx context.Context, userID uuid.UUID) (domain.Balance, error)
	ChargeGeneration(ctx context.Context, g *domain.Generation) (bool, error)
}

// Archiver copies a completed result into long-term storage.
type Archiver interface {
	Archive(ctx context.Context, g *domain.Generation) (string, error)
}

// Request is one generation ask from an authenticated caller.
type Request struct {
	Kind   domain.Kind
	Prompt string
	Size   string
}

type Options struct {
	Generations        domain.GenerationRepository
	Prices             Prices
	Ledger             Ledger
	Platform           Platform
	Archiver           Archiver
	ImageJobID         string
	SpeechJobID        string
	EmbedCorrelationID bool
	// Lease is how long an inline run holds its record against workers.
	Lease   time.Duration
	Metrics *metrics.Metrics
	Logger  *infra.Logger
}

type Orchestrator struct {
	repo        domain.GenerationRepository
	prices      Prices
	ledger      Ledger
	platform    Platform
	archiver    Archiver
	imageJobID  string
	speechJobID string
	correlate   bool
	lease       time.Duration
	metrics     *metrics.Metrics
	logger      *infra.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	lease := opts.Lease
	if lease <= 0 {
		lease = 15 * time.Minute
	}
	return &Orchestrator{
		repo:        opts.Generations,
		prices:      opts.Prices,
		ledger:      opts.Ledger,
		platform:    opts.Platform,
		archiver:    opts.Archiver,
		imageJobID:  strings.TrimSpace(opts.ImageJobID),
		speechJobID: strings.TrimSpace(opts.SpeechJobID),
		correlate:   opts.EmbedCorrelationID,
		lease:       lease,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// Admit validates and prices req, then reserves the cost and stores a pending
// record in one step. Nothing is submitted upstream here.
func (o *Orchestrator) Admit(ctx context.Context, p domain.Principal, req Request) (*domain.Generation, error) {
	return o.admit(ctx, p, req, 0)
}

// Validate checks the request fields that do not depend on the caller.
func Validate(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return &domain.InvalidInputError{Field: "prompt", Reason: "is required"}
	}
	if req.Kind == domain.KindImage && strings.TrimSpace(req.Size) == "" {
		return &domain.InvalidInputError{Field: "size", Reason: "is required"}
	}
	return nil
}

func (o *Orchestrator) admit(ctx context.Context, p domain.Principal, req Request, lease time.Duration) (*domain.Generation, error) {
	if err := Validate(req); err != nil {
		o.metrics.Admission(string(req.Kind), "invalid")
		return nil, err
	}
	if p.UserID == uuid.Nil {
		return nil, domain.ErrUnauthenticated
	}
	prompt := strings.TrimSpace(req.Prompt)
	size := strings.TrimSpace(req.Size)

	g := &domain.Generation{
		ID:     uuid.New(),
		UserID: p.UserID,
		Kind:   req.Kind,
		Prompt: prompt,
	}
	switch req.Kind {
	case domain.KindImage:
		quote := o.prices.QuoteImage(ctx, size)
		g.Size = size
		g.Cost = quote.Cost
		g.MatchKey = domain.ImageMatchKey(prompt, size)
	case domain.KindSpeech:
		quote := o.prices.QuoteSpeech(ctx, prompt)
		g.Cost = quote.Cost
		g.WordCount = quote.WordCount
		g.MatchKey = prompt
	default:
		return nil, &domain.InvalidInputError{Field: "kind", Reason: "must be image or speech"}
	}
	if o.route(g.Kind).jobID == "" {
		o.logger.Error().Str("kind", string(g.Kind)).Msg("job id not configured, rejecting admission")
		return nil, fmt.Errorf("%w: %v", domain.ErrNotConfigured, jobplatform.ErrMissingJobID)
	}
	if o.correlate {
		g.CorrelationID = g.ID.String()
	}

	balance, err := o.ledger.Balance(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: read balance: %v", domain.ErrPersistence, err)
	}
	if balance.Available().LessThan(g.Cost) {
		o.metrics.Admission(string(g.Kind), "insufficient_funds")
		return nil, &domain.InsufficientFundsError{Required: g.Cost, Available: balance.Available()}
	}

	if err := o.repo.Admit(ctx, g, lease); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			o.metrics.Admission(string(g.Kind), "insufficient_funds")
			return nil, &domain.InsufficientFundsError{Required: g.Cost, Available: o.available(ctx, p.UserID)}
		}
		return nil, fmt.Errorf("%w: admit generation: %v", domain.ErrPersistence, err)
	}

	o.metrics.Admission(string(g.Kind), "admitted")
	o.logger.Info().
		Str("generation_id", g.ID.String()).
		Str("user_id", g.UserID.String()).
		Str("kind", string(g.Kind)).
		Str("cost", g.Cost.String()).
		Str("method", string(p.Method)).
		Msg("generation admitted")
	return g, nil
}

func (o *Orchestrator) available(ctx context.Context, userID uuid.UUID) decimal.Decimal {
	b, err := o.ledger.Balance(ctx, userID)
	if err != nil {
		return decimal.Zero
	}
	return b.Available()
}

// Generate admits and runs a request inline. The record is admitted already
// leased, so workers leave it alone unless this run dies with the lease.
func (o *Orchestrator) Generate(ctx context.Context, p domain.Principal, req Request) (*domain.Generation, error) {
	g, err := o.admit(ctx, p, req, o.lease)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, g)
}

// Get returns the caller's own record.
func (o *Orchestrator) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Generation, error) {
	return o.repo.Get(ctx, p.UserID, id)
}

// List returns the caller's newest records first, optionally of one kind.
func (o *Orchestrator) List(ctx context.Context, p domain.Principal, kind domain.Kind, limit int) ([]domain.Generation, error) {
	if kind != "" && !kind.Valid() {
		return nil, &domain.InvalidInputError{Field: "kind", Reason: "must be image or speech"}
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return o.repo.List(ctx, p.UserID, kind, limit)
}
