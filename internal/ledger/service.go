// Package ledger moves money: admin credits, the single debit owed by a
// completed generation, and the transaction log behind both.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"highbid/internal/domain"
	"highbid/internal/infra"
	"highbid/internal/metrics"
)

const (
	imageChargeDescription = "Image generation charge"
	defaultHistoryLimit    = 50
	maxHistoryLimit        = 500
)

type Service struct {
	repo    domain.LedgerRepository
	logger  *infra.Logger
	metrics *metrics.Metrics
}

func NewService(repo domain.LedgerRepository, logger *infra.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Service{repo: repo, logger: logger, metrics: m}
}

func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (domain.Balance, error) {
	return s.repo.Balance(ctx, userID)
}

// Adjust applies amount in the direction of op, creating the balance row when
// missing, then appends a transaction. The transaction log is best-effort: a
// failed append is logged and the new balance is still returned.
func (s *Service) Adjust(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, op domain.AdjustOp, description, paymentID string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, &domain.InvalidInputError{Field: "amount", Reason: "must be positive"}
	}
	if op != domain.AdjustAdd && op != domain.AdjustSubtract {
		return decimal.Zero, &domain.InvalidInputError{Field: "operation", Reason: "must be add or subtract"}
	}
	balance, err := s.repo.Adjust(ctx, userID, amount, op)
	if err != nil {
		return decimal.Zero, fmt.Errorf("adjust balance: %w", err)
	}

	txType := domain.TransactionCredit
	if op == domain.AdjustSubtract {
		txType = domain.TransactionDebit
	}
	s.appendTransaction(ctx, domain.Transaction{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		PaymentID:   paymentID,
		Status:      domain.TransactionCompleted,
	})
	return balance, nil
}

// Credit tops up a balance.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	if description == "" {
		description = "Balance top-up"
	}
	return s.Adjust(ctx, userID, amount, domain.AdjustAdd, description, "")
}

// ChargeGeneration debits the admission cost of a completed generation. The
// debit happens at most once; charged reports whether this call performed it.
// On failure the record is flagged for the reconciler.
func (s *Service) ChargeGeneration(ctx context.Context, g *domain.Generation) (charged bool, err error) {
	charge, err := s.repo.Charge(ctx, g.ID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug().Str("generation_id", g.ID.String()).Msg("generation already charged")
		return false, nil
	}
	if err != nil {
		s.metrics.Charge("failed")
		// flagged even when ctx is done
		if markErr := s.repo.MarkChargeFailed(context.WithoutCancel(ctx), g.ID); markErr != nil {
			s.logger.Error().Err(markErr).Str("generation_id", g.ID.String()).Msg("flag charge failure")
		}
		return false, fmt.Errorf("charge generation %s: %w", g.ID, err)
	}

	s.metrics.Charge("charged")
	s.logger.Info().
		Str("generation_id", g.ID.String()).
		Str("user_id", charge.UserID.String()).
		Str("amount", charge.Amount.String()).
		Str("balance", charge.Balance.String()).
		Msg("generation charged")

	s.appendTransaction(ctx, domain.Transaction{
		UserID:      charge.UserID,
		Type:        domain.TransactionDebit,
		Amount:      charge.Amount,
		Description: ChargeDescription(g),
		PaymentID:   g.ID.String(),
		Status:      domain.TransactionCompleted,
	})
	return true, nil
}

// ChargeDescription is the ledger text for a generation debit.
func ChargeDescription(g *domain.Generation) string {
	if g.Kind == domain.KindSpeech {
		return fmt.Sprintf("Text-to-speech generation (%d words)", g.WordCount)
	}
	return imageChargeDescription
}

// Transactions returns the newest entries first. limit is clamped to [1, 500].
func (s *Service) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.Transactions(ctx, userID, limit)
}

func (s *Service) appendTransaction(ctx context.Context, tx domain.Transaction) {
	if err := s.repo.AppendTransaction(ctx, tx); err != nil {
		s.logger.Error().Err(err).
			Str("user_id", tx.UserID.String()).
			Str("type", string(tx.Type)).
			Str("payment_id", tx.PaymentID).
			Msg("record transaction")
	}
}
