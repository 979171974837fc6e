package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
)

// AdjustOp selects the direction of a balance adjustment.
type AdjustOp string

const (
	AdjustAdd      AdjustOp = "add"
	AdjustSubtract AdjustOp = "subtract"
)

// Balance is a user's funds. Reserved covers admitted generations that have not
// reached a terminal state yet.
type Balance struct {
	UserID   uuid.UUID
	Balance  decimal.Decimal
	Reserved decimal.Decimal
}

func (b Balance) Available() decimal.Decimal {
	return b.Balance.Sub(b.Reserved)
}

// Transaction is an append-only ledger entry.
type Transaction struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	PaymentID   string
	Status      TransactionStatus
	CreatedAt   time.Time
}

// Charge is the result of debiting a completed generation.
type Charge struct {
	GenerationID uuid.UUID
	UserID       uuid.UUID
	Amount       decimal.Decimal
	Balance      decimal.Decimal
}
