package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"highbid/internal/auth"
	"highbid/internal/domain"
	"highbid/internal/i18n"
)

const maxTokenLifetimeDays = 3650

type createTokenRequest struct {
	Name          string `json:"name"`
	ExpiresInDays int    `json:"expires_in_days"`
}

type deleteTokenRequest struct {
	ID string `json:"id"`
}

// ListTokens handles GET /api/api-tokens.
func (a *App) ListTokens(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	tokens, err := a.Tokens.ListByUser(r.Context(), p.UserID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", p.UserID.String()).Msg("list api tokens")
		a.error(w, r, http.StatusInternalServerError, "internal", "Failed to fetch tokens")
		return
	}
	if tokens == nil {
		tokens = []domain.APIToken{}
	}
	a.json(w, http.StatusOK, map[string]any{"tokens": tokens})
}

// CreateToken handles POST /api/api-tokens. The token value is returned once
// here and afterwards only through the list endpoint.
func (a *App) CreateToken(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", i18n.MsgInvalidBody)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "Token name is required")
		return
	}
	if req.ExpiresInDays < 0 || req.ExpiresInDays > maxTokenLifetimeDays {
		a.error(w, r, http.StatusBadRequest, "bad_request", "expires_in_days is out of range")
		return
	}

	value, err := auth.GenerateToken()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	token := &domain.APIToken{
		UserID:   p.UserID,
		Name:     name,
		Token:    value,
		IsActive: true,
	}
	if req.ExpiresInDays > 0 {
		exp := time.Now().UTC().AddDate(0, 0, req.ExpiresInDays)
		token.ExpiresAt = &exp
	}
	if err := a.Tokens.Create(r.Context(), token); err != nil {
		a.Logger.Error().Err(err).Str("user_id", p.UserID.String()).Msg("create api token")
		a.error(w, r, http.StatusInternalServerError, "internal", "Failed to create token")
		return
	}
	a.Logger.Info().Str("user_id", p.UserID.String()).Str("token_id", token.ID.String()).Msg("api token created")
	a.json(w, http.StatusOK, map[string]any{"token": token})
}

// DeleteToken handles DELETE /api/api-tokens with {id}.
func (a *App) DeleteToken(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req deleteTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", i18n.MsgInvalidBody)
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(req.ID))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "Token ID is required")
		return
	}
	if err := a.Tokens.Delete(r.Context(), p.UserID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, r, http.StatusNotFound, "not_found", i18n.MsgNotFound)
			return
		}
		a.Logger.Error().Err(err).Str("token_id", id.String()).Msg("delete api token")
		a.error(w, r, http.StatusInternalServerError, "internal", "Failed to delete token")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"success": true})
}
