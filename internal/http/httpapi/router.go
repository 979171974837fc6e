package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"highbid/internal/http/handlers"
	"highbid/internal/infra"
	"highbid/internal/metrics"
	"highbid/internal/middleware"
)

// Options wires the router's cross-cutting pieces. Nil Metrics disables
// instrumentation and /metrics; a nil Counter keeps rate limits in memory.
type Options struct {
	Gate          middleware.Resolver
	Logger        *infra.Logger
	Metrics       *metrics.Metrics
	Counter       middleware.Counter
	CountryLookup middleware.CountryLookup
	CORSOrigins   []string
	IPLimit       int
	TokenLimit    int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	counter := opts.Counter
	if counter == nil {
		counter = middleware.NewMemoryCounter()
	}
	ipLimiter := middleware.NewLimiter("ip", counter, opts.IPLimit, time.Minute)
	tokenLimiter := middleware.NewLimiter("token", counter, opts.TokenLimit, time.Minute)
	if opts.Metrics != nil {
		ipLimiter.OnLimited = opts.Metrics.RateLimited
		tokenLimiter.OnLimited = opts.Metrics.RateLimited
	}

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N("en", opts.CountryLookup),
	)
	if opts.Logger != nil {
		r.Use(middleware.Logger(*opts.Logger))
	}
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/readyz", app.Ready)
	r.Get("/api/docs", app.OpenAPIDocs)
	r.Get("/api/openapi.json", app.OpenAPIJSON)

	r.Group(func(r chi.Router) {
		r.Use(ipLimiter.ByIP)

		r.Get("/api/pricing", app.ImagePricing)
		r.Get("/api/tts/pricing", app.SpeechPricing)

		// API tokens or sessions; generation requests validate their body
		// before rejecting anonymous callers
		r.Group(func(r chi.Router) {
			r.Use(middleware.Identify(opts.Gate), tokenLimiter.ByToken)
			r.Post("/api/generateImage", app.GenerateImage)
			r.Post("/api/tts/generate", app.GenerateSpeech)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(opts.Gate), tokenLimiter.ByToken)
			r.Get("/api/generations", app.ListGenerations)
			r.Get("/api/generations/{id}", app.GetGeneration)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(opts.Gate))
			r.Get("/api/balance", app.Balance)
			r.Get("/api/transactions", app.Transactions)
			r.Get("/api/transactions/export", app.ExportTransactions)
			r.Get("/api/api-tokens", app.ListTokens)
			r.Post("/api/api-tokens", app.CreateToken)
			r.Delete("/api/api-tokens", app.DeleteToken)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/api/pricing", app.UpdateImagePricing)
				r.Post("/api/tts/pricing", app.UpdateSpeechPricing)
				r.Post("/api/admin/credit", app.CreditBalance)
				r.Get("/api/admin/stats", app.AdminStats)
			})
		})
	})

	return r
}
