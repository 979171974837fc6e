package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"highbid/internal/domain"
	"highbid/pkg/zip"
)

type balanceResponse struct {
	Balance   json.Number `json:"balance"`
	Reserved  json.Number `json:"reserved"`
	Available json.Number `json:"available"`
}

// Balance handles GET /api/balance. A user without a balance row has 0.
func (a *App) Balance(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	b, err := a.Ledger.Balance(r.Context(), p.UserID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", p.UserID.String()).Msg("balance lookup failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "Failed to fetch balance")
		return
	}
	a.json(w, http.StatusOK, balanceResponse{
		Balance:   json.Number(b.Balance.String()),
		Reserved:  json.Number(b.Reserved.String()),
		Available: json.Number(b.Available().String()),
	})
}

type transactionView struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	PaymentID   string      `json:"payment_id,omitempty"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Transactions handles GET /api/transactions.
func (a *App) Transactions(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txs, err := a.Ledger.Transactions(r.Context(), p.UserID, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		items = append(items, transactionView{
			ID:          tx.ID.String(),
			Type:        string(tx.Type),
			Amount:      json.Number(tx.Amount.String()),
			Description: tx.Description,
			PaymentID:   tx.PaymentID,
			Status:      string(tx.Status),
			CreatedAt:   tx.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"transactions": items})
}

// ExportTransactions handles GET /api/transactions/export: a zip holding the
// statement as CSV.
func (a *App) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	txs, err := a.Ledger.Transactions(r.Context(), p.UserID, 500)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	statement, err := statementCSV(txs)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	now := time.Now().UTC()
	archive, err := zip.Archive([]zip.File{{Name: "transactions.csv", Modified: now, Data: statement}})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%s.zip"`, now.Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func statementCSV(txs []domain.Transaction) ([]byte, error) {
	buf := &bytes.Buffer{}
	cw := csv.NewWriter(buf)
	_ = cw.Write([]string{"created_at", "type", "amount", "status", "description", "payment_id"})
	for _, tx := range txs {
		_ = cw.Write([]string{
			tx.CreatedAt.UTC().Format(time.RFC3339),
			string(tx.Type),
			tx.Amount.StringFixed(4),
			string(tx.Status),
			tx.Description,
			tx.PaymentID,
		})
	}
	cw.Flush()
	return buf.Bytes(), cw.Error()
}
