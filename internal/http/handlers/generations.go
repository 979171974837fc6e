package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"highbid/internal/domain"
	"highbid/internal/i18n"
	"highbid/internal/middleware"
)

type generationView struct {
	ID           string      `json:"id"`
	Kind         string      `json:"kind"`
	Prompt       string      `json:"prompt"`
	Size         string      `json:"size,omitempty"`
	WordCount    int         `json:"word_count,omitempty"`
	Cost         json.Number `json:"cost"`
	Status       string      `json:"status"`
	ResultURL    string      `json:"result_url,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	ChargeStatus string      `json:"charge_status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func viewGeneration(g domain.Generation, locale string) generationView {
	return generationView{
		ID:           g.ID.String(),
		Kind:         string(g.Kind),
		Prompt:       g.Prompt,
		Size:         g.Size,
		WordCount:    g.WordCount,
		Cost:         json.Number(g.Cost.String()),
		Status:       string(g.Status),
		ResultURL:    g.ResultURL,
		ErrorMessage: i18n.Translate(locale, g.ErrorMessage),
		ChargeStatus: string(g.ChargeStatus),
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

// ListGenerations handles GET /api/generations.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	kind := domain.Kind(r.URL.Query().Get("kind"))

	gens, err := a.Generations.List(r.Context(), p, kind, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	items := make([]generationView, 0, len(gens))
	for _, g := range gens {
		items = append(items, viewGeneration(g, locale))
	}
	a.json(w, http.StatusOK, map[string]any{"generations": items})
}

// GetGeneration handles GET /api/generations/{id}.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, r, http.StatusNotFound, "not_found", i18n.MsgNotFound)
		return
	}
	g, err := a.Generations.Get(r.Context(), p, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	body := map[string]any{"generation": viewGeneration(*g, locale)}
	switch g.Status {
	case domain.GenerationCompleted:
		body["success"] = true
	case domain.GenerationFailed:
		body["success"] = false
		body["message"] = i18n.Translate(locale, g.ErrorMessage)
	default:
		body["message"] = i18n.T(locale, i18n.MsgGenerationPending)
	}
	a.json(w, http.StatusOK, body)
}
