// Package auth resolves the caller of a request from an API token or a
// session issued by the identity provider.
package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"highbid/internal/domain"
	"highbid/internal/infra"
)

// SessionHeader carries a session token for clients that cannot send cookies.
const SessionHeader = "X-Session-Token"

type TokenStore interface {
	FindByToken(ctx context.Context, token string) (*domain.APIToken, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}

type Gate struct {
	tokens   TokenStore
	sessions *SessionVerifier
	cookie   string
	isAdmin  func(email string) bool
	logger   *infra.Logger
	now      func() time.Time
}

func NewGate(tokens TokenStore, sessions *SessionVerifier, cookie string, isAdmin func(string) bool, logger *infra.Logger) *Gate {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &Gate{tokens: tokens, sessions: sessions, cookie: cookie, isAdmin: isAdmin, logger: logger, now: time.Now}
}

// Resolve tries the bearer API token first and falls back to the session,
// also when the token lookup itself fails.
func (g *Gate) Resolve(r *http.Request) (domain.Principal, error) {
	if bearer := bearerToken(r); bearer != "" {
		p, err := g.resolveToken(r.Context(), bearer)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrUnauthenticated) {
			g.logger.Error().Err(err).Msg("api token lookup failed, trying session")
		}
	}
	return g.ResolveSession(r)
}

// ResolveSession only accepts a session, for routes API tokens may not reach.
func (g *Gate) ResolveSession(r *http.Request) (domain.Principal, error) {
	raw := sessionToken(r, g.cookie)
	if raw == "" || g.sessions == nil {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	claims, err := g.sessions.Verify(raw)
	if err != nil {
		g.logger.Debug().Err(err).Msg("session rejected")
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	userID, _ := uuid.Parse(claims.Subject)
	return domain.Principal{
		UserID: userID,
		Email:  claims.Email,
		Method: domain.AuthSession,
		Access: domain.AccessRestricted,
		Admin:  claims.Role == "admin" || g.isAdmin(claims.Email),
	}, nil
}

func (g *Gate) resolveToken(ctx context.Context, raw string) (domain.Principal, error) {
	tok, err := g.tokens.FindByToken(ctx, raw)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.Principal{}, err
	}
	if !tok.Usable(g.now()) {
		g.logger.Info().Str("token_id", tok.ID.String()).Msg("api token inactive or expired")
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if err := g.tokens.TouchLastUsed(ctx, tok.ID); err != nil {
		g.logger.Warn().Err(err).Str("token_id", tok.ID.String()).Msg("update token last_used_at")
	}
	id := tok.ID
	return domain.Principal{
		UserID:  tok.UserID,
		Method:  domain.AuthToken,
		Access:  domain.AccessPrivileged,
		TokenID: &id,
	}, nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

func sessionToken(r *http.Request, cookie string) string {
	if cookie != "" {
		if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return strings.TrimSpace(r.Header.Get(SessionHeader))
}
