package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"highbid/internal/adapter/memstore"
	"highbid/internal/domain"
)

const secret = "test-secret"

func newGate(t *testing.T, store *memstore.Store) (*Gate, *SessionVerifier) {
	t.Helper()
	sv, err := NewSessionVerifier(secret)
	if err != nil {
		t.Fatalf("NewSessionVerifier error: %v", err)
	}
	isAdmin := func(email string) bool { return email == "boss@example.com" }
	return NewGate(store, sv, "hb_session", isAdmin, nil), sv
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if !regexp.MustCompile(`^hb_[0-9a-f]{64}$`).MatchString(tok) {
		t.Fatalf("unexpected token format %q", tok)
	}
	other, _ := GenerateToken()
	if other == tok {
		t.Fatalf("tokens must differ")
	}
}

func TestResolveAPIToken(t *testing.T) {
	store := memstore.New()
	userID := uuid.New()
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)
	store.PutToken(domain.APIToken{UserID: userID, Token: "hb_valid", IsActive: true, ExpiresAt: &future})
	store.PutToken(domain.APIToken{UserID: userID, Token: "hb_expired", IsActive: true, ExpiresAt: &past})
	store.PutToken(domain.APIToken{UserID: userID, Token: "hb_inactive", IsActive: false})
	gate, _ := newGate(t, store)

	cases := []struct {
		token string
		ok    bool
	}{
		{"hb_valid", true},
		{"hb_expired", false},
		{"hb_inactive", false},
		{"hb_unknown", false},
	}
	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/generateImage", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			p, err := gate.Resolve(req)
			if !tc.ok {
				if !errors.Is(err, domain.ErrUnauthenticated) {
					t.Fatalf("expected ErrUnauthenticated, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			if p.UserID != userID || p.Method != domain.AuthToken || p.Access != domain.AccessPrivileged || p.TokenID == nil {
				t.Fatalf("unexpected principal %+v", p)
			}
		})
	}

	tok, _ := store.FindByToken(context.Background(), "hb_valid")
	if tok.LastUsedAt == nil {
		t.Fatalf("last_used_at not updated")
	}
}

func TestResolveTokenTouchFailureDoesNotBlock(t *testing.T) {
	store := memstore.New()
	store.PutToken(domain.APIToken{UserID: uuid.New(), Token: "hb_valid", IsActive: true})
	store.FailTouch(errors.New("read only"))
	gate, _ := newGate(t, store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer hb_valid")
	if _, err := gate.Resolve(req); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
}

func TestResolveSessionFallback(t *testing.T) {
	store := memstore.New()
	gate, sv := newGate(t, store)
	userID := uuid.New()
	session, err := sv.Sign(userID, "boss@example.com", "", time.Hour)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
	req.Header.Set("Authorization", "Bearer hb_unknown")
	req.AddCookie(&http.Cookie{Name: "hb_session", Value: session})
	p, err := gate.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if p.UserID != userID || p.Method != domain.AuthSession || p.Access != domain.AccessRestricted || !p.Admin {
		t.Fatalf("unexpected principal %+v", p)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/balance", nil)
	req.Header.Set(SessionHeader, session)
	if _, err := gate.ResolveSession(req); err != nil {
		t.Fatalf("header session rejected: %v", err)
	}
}

type brokenTokens struct{}

func (brokenTokens) FindByToken(context.Context, string) (*domain.APIToken, error) {
	return nil, errors.New("connection refused")
}

func (brokenTokens) TouchLastUsed(context.Context, uuid.UUID) error { return nil }

func TestResolveTokenLookupFailureFallsBackToSession(t *testing.T) {
	sv, err := NewSessionVerifier(secret)
	if err != nil {
		t.Fatalf("NewSessionVerifier error: %v", err)
	}
	gate := NewGate(brokenTokens{}, sv, "hb_session", nil, nil)
	userID := uuid.New()
	session, _ := sv.Sign(userID, "user@example.com", "", time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/api/generateImage", nil)
	req.Header.Set("Authorization", "Bearer hb_anything")
	req.Header.Set(SessionHeader, session)
	p, err := gate.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if p.UserID != userID || p.Method != domain.AuthSession {
		t.Fatalf("unexpected principal %+v", p)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/generateImage", nil)
	req.Header.Set("Authorization", "Bearer hb_anything")
	if _, err := gate.Resolve(req); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated without a session, got %v", err)
	}
}

func TestResolveSessionRejects(t *testing.T) {
	store := memstore.New()
	gate, sv := newGate(t, store)
	expired, _ := sv.Sign(uuid.New(), "a@example.com", "", -time.Minute)
	other, _ := NewSessionVerifier("other-secret")
	forged, _ := other.Sign(uuid.New(), "a@example.com", "admin", time.Hour)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}).SignedString([]byte(secret))
	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(secret))

	for name, token := range map[string]string{
		"missing":     "",
		"expired":     expired,
		"forged":      forged,
		"no exp":      noExp,
		"bad subject": badSubject,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if token != "" {
				req.Header.Set(SessionHeader, token)
			}
			if _, err := gate.Resolve(req); !errors.Is(err, domain.ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestSessionRoleGrantsAdmin(t *testing.T) {
	gate, sv := newGate(t, memstore.New())
	session, _ := sv.Sign(uuid.New(), "someone@example.com", "admin", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, session)
	p, err := gate.ResolveSession(req)
	if err != nil || !p.Admin {
		t.Fatalf("expected admin principal, got %+v %v", p, err)
	}
}
