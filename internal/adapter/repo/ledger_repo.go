package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"highbid/internal/domain"
	"highbid/internal/infra"
	"highbid/internal/sqlinline"
)

// LedgerRepositoryPG implements domain.LedgerRepository.
type LedgerRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewLedgerRepository(sql infra.SQLExecutor) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{sql: sql}
}

// Balance returns a zero balance for users without a row.
func (r *LedgerRepositoryPG) Balance(ctx context.Context, userID uuid.UUID) (domain.Balance, error) {
	b := domain.Balance{UserID: userID}
	err := r.sql.QueryRow(ctx, sqlinline.QSelectBalance, userID).Scan(&b.Balance, &b.Reserved)
	if err != nil && !infra.IsNoRows(err) {
		return domain.Balance{}, err
	}
	return b, nil
}

func (r *LedgerRepositoryPG) Adjust(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, op domain.AdjustOp) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := r.sql.QueryRow(ctx, sqlinline.QAdjustBalance, userID, amount, string(op)).Scan(&balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (r *LedgerRepositoryPG) Charge(ctx context.Context, generationID uuid.UUID) (domain.Charge, error) {
	var c domain.Charge
	err := r.sql.QueryRow(ctx, sqlinline.QChargeGeneration, generationID).Scan(&c.GenerationID, &c.UserID, &c.Amount, &c.Balance)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.Charge{}, domain.ErrNotFound
		}
		return domain.Charge{}, err
	}
	return c, nil
}

func (r *LedgerRepositoryPG) MarkChargeFailed(ctx context.Context, generationID uuid.UUID) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkChargeFailed, generationID)
	return err
}

func (r *LedgerRepositoryPG) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	status := tx.Status
	if status == "" {
		status = domain.TransactionCompleted
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertTransaction,
		tx.UserID,
		string(tx.Type),
		tx.Amount,
		tx.Description,
		tx.PaymentID,
		string(status),
	)
	return err
}

func (r *LedgerRepositoryPG) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListTransactions, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Description, &tx.PaymentID, &tx.Status, &tx.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

var _ domain.LedgerRepository = (*LedgerRepositoryPG)(nil)
