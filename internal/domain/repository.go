package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerationRepository persists generation records. Terminal transitions are
// guarded so a record leaves pending/generating at most once.
type GenerationRepository interface {
	// Admit reserves g.Cost against the user's available balance and inserts g
	// in one statement. It returns ErrInsufficientFunds when the reservation loses.
	// A positive lease inserts g already generating and leased to the caller.
	Admit(ctx context.Context, g *Generation, lease time.Duration) error
	Get(ctx context.Context, userID, id uuid.UUID) (*Generation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Generation, error)
	List(ctx context.Context, userID uuid.UUID, kind Kind, limit int) ([]Generation, error)
	// Claim leases the oldest runnable record: pending, or generating with an expired lease.
	Claim(ctx context.Context, lease time.Duration) (*Generation, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID) error
	// Complete and Fail return false when the record was already terminal.
	// Fail also releases the reservation.
	Complete(ctx context.Context, id uuid.UUID, resultURL string) (bool, error)
	Fail(ctx context.Context, id uuid.UUID, message string) (bool, error)
	SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error
	// ListUncharged returns completed records whose charge failed, or that
	// were never charged and have not changed for longer than grace.
	ListUncharged(ctx context.Context, grace time.Duration, limit int) ([]Generation, error)
}

// LedgerRepository owns balances and the transaction log.
type LedgerRepository interface {
	Balance(ctx context.Context, userID uuid.UUID) (Balance, error)
	Adjust(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, op AdjustOp) (decimal.Decimal, error)
	// Charge debits a completed generation exactly once and drops its
	// reservation. ErrNotFound means there was nothing left to charge.
	Charge(ctx context.Context, generationID uuid.UUID) (Charge, error)
	MarkChargeFailed(ctx context.Context, generationID uuid.UUID) error
	AppendTransaction(ctx context.Context, tx Transaction) error
	Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error)
}

// PricingRepository reads and updates price tables.
type PricingRepository interface {
	ImagePrices(ctx context.Context) ([]PriceEntry, error)
	ImagePrice(ctx context.Context, size string) (decimal.Decimal, error)
	UpdateImagePrice(ctx context.Context, size string, price decimal.Decimal) error
	SpeechRates(ctx context.Context) ([]SpeechRate, error)
	UpdateSpeechRate(ctx context.Context, id int, price decimal.Decimal) error
}

// TokenRepository stores API tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *APIToken) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]APIToken, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	FindByToken(ctx context.Context, token string) (*APIToken, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}

// StatsRepository aggregates the admin dashboard.
type StatsRepository interface {
	Summary(ctx context.Context) (Stats, error)
}
