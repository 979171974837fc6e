package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"highbid/internal/i18n"
)

type creditRequest struct {
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// CreditBalance handles POST /api/admin/credit.
func (a *App) CreditBalance(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req creditRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", i18n.MsgInvalidBody)
		return
	}
	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "user_id must be a uuid")
		return
	}
	balance, err := a.Ledger.Credit(r.Context(), userID, req.Amount, req.Description)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.Logger.Info().
		Str("admin", p.Email).
		Str("user_id", userID.String()).
		Str("amount", req.Amount.String()).
		Msg("balance credited")
	a.json(w, http.StatusOK, map[string]any{
		"success": true,
		"balance": json.Number(balance.String()),
	})
}

// AdminStats handles GET /api/admin/stats.
func (a *App) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Stats.Summary(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("load stats")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, stats)
}
