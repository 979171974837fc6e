package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"highbid/internal/adapter/memstore"
	"highbid/internal/domain"
	"highbid/internal/generation"
	"highbid/internal/jobplatform"
	"highbid/internal/ledger"
	"highbid/internal/middleware"
	"highbid/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubPlatform struct {
	mu        sync.Mutex
	submitErr error
	outcome   jobplatform.Outcome
	submitted []jobplatform.Input
}

func (p *stubPlatform) Submit(ctx context.Context, jobID string, in jobplatform.Input) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.submitErr != nil {
		return p.submitErr
	}
	p.submitted = append(p.submitted, in)
	return nil
}

func (p *stubPlatform) Poll(ctx context.Context, jobID string, m jobplatform.Matcher, field string) (jobplatform.Outcome, error) {
	return p.outcome, nil
}

func (p *stubPlatform) Resume(ctx context.Context, jobID string, m jobplatform.Matcher, field string) (jobplatform.Outcome, error) {
	return p.outcome, nil
}

type testApp struct {
	app      *App
	store    *memstore.Store
	platform *stubPlatform
	user     domain.Principal
	router   http.Handler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store := memstore.New()
	store.SetImagePrice("512x512", dec("0.50"))
	store.SetImagePrice("1024x1024", dec("1.00"))
	store.SetSpeechRate(dec("0.003"))
	platform := &stubPlatform{outcome: jobplatform.Outcome{State: jobplatform.StateSucceeded, URL: "https://cdn.example.com/out.png", Attempts: 1}}
	led := ledger.NewService(store, nil, nil)
	prices := pricing.NewService(store, nil)
	orch := generation.NewOrchestrator(generation.Options{
		Generations: store,
		Prices:      prices,
		Ledger:      led,
		Platform:    platform,
		ImageJobID:  "job-image",
		SpeechJobID: "job-speech",
	})
	app := NewApp(orch, prices, led, store, store, nil)
	ta := &testApp{
		app:      app,
		store:    store,
		platform: platform,
		user:     domain.Principal{UserID: uuid.New(), Email: "user@example.com", Method: domain.AuthSession, Access: domain.AccessPrivileged},
	}

	r := chi.NewRouter()
	r.Use(middleware.I18N("en", nil))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithPrincipal(req.Context(), ta.user)))
		})
	})
	r.Post("/api/generateImage", app.GenerateImage)
	r.Post("/api/tts/generate", app.GenerateSpeech)
	r.Get("/api/generations", app.ListGenerations)
	r.Get("/api/generations/{id}", app.GetGeneration)
	r.Get("/api/balance", app.Balance)
	r.Get("/api/transactions/export", app.ExportTransactions)
	r.Get("/api/api-tokens", app.ListTokens)
	r.Post("/api/api-tokens", app.CreateToken)
	r.Delete("/api/api-tokens", app.DeleteToken)
	r.Get("/api/pricing", app.ImagePricing)
	r.Post("/api/pricing", app.UpdateImagePricing)
	r.Post("/api/admin/credit", app.CreditBalance)
	ta.router = r
	return ta
}

func (ta *testApp) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	ta.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestGenerateImageQueuesByDefault(t *testing.T) {
	ta := newTestApp(t)
	ta.store.SetBalance(ta.user.UserID, dec("1.00"))

	rr := ta.do(t, http.MethodPost, "/api/generateImage", `{"prompt":"a cat","size":"512x512"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	id, _ := body["generation_id"].(string)
	if body["status"] != "pending" || body["status_url"] != "/api/generations/"+id {
		t.Fatalf("unexpected body %v", body)
	}
	if len(ta.platform.submitted) != 0 {
		t.Fatalf("async admission must not submit upstream")
	}
	b, _ := ta.store.Balance(context.Background(), ta.user.UserID)
	if !b.Reserved.Equal(dec("0.50")) {
		t.Fatalf("expected 0.50 reserved, got %s", b.Reserved)
	}

	status := ta.do(t, http.MethodGet, "/api/generations/"+id, "")
	if status.Code != http.StatusOK {
		t.Fatalf("status endpoint returned %d", status.Code)
	}
	if msg := decodeBody(t, status)["message"]; msg != "Generation is still in progress" {
		t.Fatalf("unexpected pending message %v", msg)
	}
}

func TestGenerateImageWaitReturnsResult(t *testing.T) {
	ta := newTestApp(t)
	ta.store.SetBalance(ta.user.UserID, dec("1.00"))

	rr := ta.do(t, http.MethodPost, "/api/generateImage?wait=true", `{"prompt":"a cat","size":"1024x1024"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["success"] != true || body["imageUrl"] != "https://cdn.example.com/out.png" || body["cost"] != 1.0 {
		t.Fatalf("unexpected body %v", body)
	}
	b, _ := ta.store.Balance(context.Background(), ta.user.UserID)
	if !b.Balance.IsZero() || !b.Reserved.IsZero() {
		t.Fatalf("expected balance fully charged, got %+v", b)
	}
}

func TestGenerateSpeechDeclinedReportsFailure(t *testing.T) {
	ta := newTestApp(t)
	ta.app.SyncGeneration = true
	ta.store.SetBalance(ta.user.UserID, dec("1.00"))
	ta.platform.outcome = jobplatform.Outcome{State: jobplatform.StateFailed, Detail: "declined", Attempts: 1}

	rr := ta.do(t, http.MethodPost, "/api/tts/generate", `{"prompt":"hello there"}`, "Accept-Language", "id-ID")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != false || body["message"] != "Pembuatan suara gagal. Silakan coba lagi." {
		t.Fatalf("unexpected body %v", body)
	}
	b, _ := ta.store.Balance(context.Background(), ta.user.UserID)
	if !b.Balance.Equal(dec("1.00")) || !b.Reserved.IsZero() {
		t.Fatalf("failed generation must leave balance untouched, got %+v", b)
	}
}

func TestGenerateSubmitFailureIs500(t *testing.T) {
	ta := newTestApp(t)
	ta.store.SetBalance(ta.user.UserID, dec("1.00"))
	ta.platform.submitErr = &jobplatform.SubmitError{Status: http.StatusServiceUnavailable}

	rr := ta.do(t, http.MethodPost, "/api/generateImage?wait=1", `{"prompt":"a cat","size":"512x512"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if msg := decodeBody(t, rr)["message"]; msg != "Failed to submit task: 503" {
		t.Fatalf("unexpected message %v", msg)
	}
}

func TestGenerateRejections(t *testing.T) {
	cases := []struct {
		name    string
		path    string
		body    string
		balance string
		status  int
		message string
	}{
		{"missing prompt", "/api/generateImage", `{"prompt":"  ","size":"512x512"}`, "5", http.StatusBadRequest, "Prompt is required"},
		{"missing size", "/api/generateImage", `{"prompt":"cat"}`, "5", http.StatusBadRequest, "Size is required"},
		{"bad json", "/api/tts/generate", `{`, "5", http.StatusBadRequest, "Invalid request body"},
		{"insufficient", "/api/generateImage", `{"prompt":"cat","size":"1024x1024"}`, "0.40", http.StatusPaymentRequired,
			"Insufficient balance. You need $1.00 but only have $0.40. Please top up your account."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ta := newTestApp(t)
			ta.store.SetBalance(ta.user.UserID, dec(tc.balance))
			rr := ta.do(t, http.MethodPost, tc.path, tc.body)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if msg := decodeBody(t, rr)["message"]; msg != tc.message {
				t.Fatalf("unexpected message %v", msg)
			}
			if ta.store.GenerationCount() != 0 {
				t.Fatalf("rejected request must not create a record")
			}
		})
	}
}

func TestGenerateWithoutJobIDReservesNothing(t *testing.T) {
	ta := newTestApp(t)
	ta.store.SetBalance(ta.user.UserID, dec("1.00"))
	prices := pricing.NewService(ta.store, nil)
	ta.app.Generations = generation.NewOrchestrator(generation.Options{
		Generations: ta.store,
		Prices:      prices,
		Ledger:      ledger.NewService(ta.store, nil, nil),
		Platform:    ta.platform,
		ImageJobID:  "job-image",
	})

	for _, path := range []string{"/api/tts/generate", "/api/tts/generate?wait=true"} {
		rr := ta.do(t, http.MethodPost, path, `{"prompt":"hello there"}`)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", path, rr.Code)
		}
		if msg := decodeBody(t, rr)["message"]; msg != "Service configuration error" {
			t.Fatalf("unexpected message %v", msg)
		}
	}
	if ta.store.GenerationCount() != 0 {
		t.Fatalf("no record expected")
	}
	if b, _ := ta.store.Balance(context.Background(), ta.user.UserID); !b.Reserved.IsZero() {
		t.Fatalf("nothing should be reserved, got %+v", b)
	}
}

func TestGenerateValidatesBeforeAuthentication(t *testing.T) {
	ta := newTestApp(t)
	r := chi.NewRouter()
	r.Post("/api/generateImage", ta.app.GenerateImage)

	req := httptest.NewRequest(http.MethodPost, "/api/generateImage", strings.NewReader(`{"prompt":"","size":"512x512"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/generateImage", strings.NewReader(`{"prompt":"cat","size":"512x512"}`))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestGetGenerationOfAnotherUserIsNotFound(t *testing.T) {
	ta := newTestApp(t)
	ta.store.SetBalance(ta.user.UserID, dec("1.00"))
	rr := ta.do(t, http.MethodPost, "/api/generateImage", `{"prompt":"a cat","size":"512x512"}`)
	id := decodeBody(t, rr)["generation_id"].(string)

	ta.user = domain.Principal{UserID: uuid.New(), Method: domain.AuthToken}
	if rr := ta.do(t, http.MethodGet, "/api/generations/"+id, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := ta.do(t, http.MethodGet, "/api/generations/not-a-uuid", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed id, got %d", rr.Code)
	}
}

func TestListGenerationsFiltersKind(t *testing.T) {
	ta := newTestApp(t)
	ta.store.SetBalance(ta.user.UserID, dec("5.00"))
	ta.do(t, http.MethodPost, "/api/generateImage", `{"prompt":"a cat","size":"512x512"}`)
	ta.do(t, http.MethodPost, "/api/tts/generate", `{"prompt":"hello"}`)

	rr := ta.do(t, http.MethodGet, "/api/generations?kind=speech", "")
	var body struct {
		Generations []generationView `json:"generations"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Generations) != 1 || body.Generations[0].Kind != "speech" {
		t.Fatalf("unexpected generations %+v", body.Generations)
	}
	if rr := ta.do(t, http.MethodGet, "/api/generations?kind=video", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", rr.Code)
	}
}

func TestBalanceWithoutRowIsZero(t *testing.T) {
	ta := newTestApp(t)
	rr := ta.do(t, http.MethodGet, "/api/balance", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if b := decodeBody(t, rr)["balance"]; b != 0.0 {
		t.Fatalf("expected zero balance, got %v", b)
	}
}

func TestTokenLifecycle(t *testing.T) {
	ta := newTestApp(t)

	if rr := ta.do(t, http.MethodPost, "/api/api-tokens", `{"name":"  "}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", rr.Code)
	}

	rr := ta.do(t, http.MethodPost, "/api/api-tokens", `{"name":"ci","expires_in_days":30}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("create token: %d %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Token domain.APIToken `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(created.Token.Token, "hb_") || created.Token.ExpiresAt == nil {
		t.Fatalf("unexpected token %+v", created.Token)
	}

	rr = ta.do(t, http.MethodGet, "/api/api-tokens", "")
	var listed struct {
		Tokens []domain.APIToken `json:"tokens"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &listed)
	if len(listed.Tokens) != 1 || listed.Tokens[0].Name != "ci" {
		t.Fatalf("unexpected tokens %+v", listed.Tokens)
	}

	rr = ta.do(t, http.MethodDelete, "/api/api-tokens", `{"id":"`+created.Token.ID.String()+`"}`)
	if rr.Code != http.StatusOK || decodeBody(t, rr)["success"] != true {
		t.Fatalf("delete token: %d %s", rr.Code, rr.Body.String())
	}
	rr = ta.do(t, http.MethodDelete, "/api/api-tokens", `{"id":"`+created.Token.ID.String()+`"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rr.Code)
	}
}

func TestPricingUpdateAffectsNextQuote(t *testing.T) {
	ta := newTestApp(t)
	ta.store.SetBalance(ta.user.UserID, dec("1.00"))

	rr := ta.do(t, http.MethodPost, "/api/pricing", `{"pricing":[{"size_key":"512x512","price":"2.00"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update pricing: %d %s", rr.Code, rr.Body.String())
	}
	if rr := ta.do(t, http.MethodPost, "/api/pricing", `{"pricing":[{"size_key":"512x512","price":"-1"}]}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative price, got %d", rr.Code)
	}
	if rr := ta.do(t, http.MethodPost, "/api/pricing", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing pricing, got %d", rr.Code)
	}

	rr = ta.do(t, http.MethodPost, "/api/generateImage", `{"prompt":"a cat","size":"512x512"}`)
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected the new price to apply, got %d", rr.Code)
	}
}

func TestCreditAndExportStatement(t *testing.T) {
	ta := newTestApp(t)
	target := ta.user.UserID.String()

	if rr := ta.do(t, http.MethodPost, "/api/admin/credit", `{"user_id":"`+target+`","amount":"0"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero credit, got %d", rr.Code)
	}
	rr := ta.do(t, http.MethodPost, "/api/admin/credit", `{"user_id":"`+target+`","amount":"10.00","description":"manual"}`)
	if rr.Code != http.StatusOK || decodeBody(t, rr)["balance"] != 10.0 {
		t.Fatalf("credit: %d %s", rr.Code, rr.Body.String())
	}

	rr = ta.do(t, http.MethodGet, "/api/transactions/export", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("export: %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	raw := rr.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "transactions.csv" {
		t.Fatalf("unexpected archive entries")
	}
	f, _ := zr.File[0].Open()
	defer f.Close()
	data, _ := io.ReadAll(f)
	if !strings.Contains(string(data), "credit,10.0000,completed,manual") {
		t.Fatalf("statement missing credit row:\n%s", data)
	}
}
