package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"highbid/internal/domain"
	"highbid/internal/generation"
	"highbid/internal/i18n"
	"highbid/internal/infra"
	"highbid/internal/ledger"
	"highbid/internal/middleware"
	"highbid/internal/pricing"
)

// App carries the services the HTTP handlers call into.
type App struct {
	Generations    *generation.Orchestrator
	Pricing        *pricing.Service
	Ledger         *ledger.Service
	Tokens         domain.TokenRepository
	Stats          domain.StatsRepository
	SyncGeneration bool
	Ping           func(context.Context) error
	Logger         *infra.Logger
}

func NewApp(gens *generation.Orchestrator, prices *pricing.Service, led *ledger.Service, tokens domain.TokenRepository, stats domain.StatsRepository, logger *infra.Logger) *App {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &App{
		Generations: gens,
		Pricing:     prices,
		Ledger:      led,
		Tokens:      tokens,
		Stats:       stats,
		Logger:      logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error writes {error, message}; message is translated for the request locale.
func (a *App) error(w http.ResponseWriter, r *http.Request, code int, errCode, msg string) {
	a.json(w, code, map[string]string{
		"error":   errCode,
		"message": i18n.Translate(middleware.LocaleFromContext(r.Context()), msg),
	})
}

// fail maps service errors onto status codes.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	var funds *domain.InsufficientFundsError
	var invalid *domain.InvalidInputError
	switch {
	case errors.As(err, &funds):
		a.json(w, http.StatusPaymentRequired, map[string]string{
			"error":   "insufficient_funds",
			"message": i18n.T(locale, i18n.MsgInsufficient, funds.Required.StringFixed(2), funds.Available.StringFixed(2)),
		})
	case errors.As(err, &invalid):
		a.error(w, r, http.StatusBadRequest, "bad_request", invalidMessage(invalid))
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, r, http.StatusBadRequest, "bad_request", i18n.MsgInvalidBody)
	case errors.Is(err, domain.ErrUnauthenticated):
		a.error(w, r, http.StatusUnauthorized, "unauthorized", i18n.MsgUnauthorized)
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, r, http.StatusForbidden, "forbidden", i18n.MsgForbidden)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, r, http.StatusNotFound, "not_found", i18n.MsgNotFound)
	case errors.Is(err, domain.ErrNotConfigured):
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("service not configured")
		a.error(w, r, http.StatusInternalServerError, "internal", i18n.MsgServiceConfig)
	case errors.Is(err, domain.ErrPersistence):
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("persistence failure")
		a.error(w, r, http.StatusInternalServerError, "internal", i18n.MsgRecordFailed)
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, r, http.StatusInternalServerError, "internal", i18n.MsgInternal)
	}
}

func invalidMessage(err *domain.InvalidInputError) string {
	switch err.Field {
	case "prompt":
		return i18n.MsgPromptRequired
	case "size":
		return i18n.MsgSizeRequired
	}
	return err.Error()
}

func (a *App) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", i18n.MsgUnauthorized)
	}
	return p, ok
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(v)
}
