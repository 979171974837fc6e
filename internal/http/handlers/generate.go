package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"highbid/internal/domain"
	"highbid/internal/generation"
	"highbid/internal/i18n"
	"highbid/internal/middleware"
)

type generateRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
}

type acceptedResponse struct {
	Success      bool   `json:"success"`
	GenerationID string `json:"generation_id"`
	Status       string `json:"status"`
	StatusURL    string `json:"status_url"`
}

// GenerateImage handles POST /api/generateImage.
func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	a.generate(w, r, domain.KindImage)
}

// GenerateSpeech handles POST /api/tts/generate.
func (a *App) GenerateSpeech(w http.ResponseWriter, r *http.Request) {
	a.generate(w, r, domain.KindSpeech)
}

func (a *App) generate(w http.ResponseWriter, r *http.Request, kind domain.Kind) {
	var body generateRequest
	if err := decodeJSON(r, &body); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", i18n.MsgInvalidBody)
		return
	}
	req := generation.Request{Kind: kind, Prompt: body.Prompt, Size: body.Size}
	if err := generation.Validate(req); err != nil {
		a.fail(w, r, err)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}

	if !a.wait(r) {
		g, err := a.Generations.Admit(r.Context(), p, req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		a.json(w, http.StatusAccepted, acceptedResponse{
			Success:      true,
			GenerationID: g.ID.String(),
			Status:       string(g.Status),
			StatusURL:    "/api/generations/" + g.ID.String(),
		})
		return
	}

	g, err := a.Generations.Generate(r.Context(), p, req)
	switch {
	case g == nil:
		a.fail(w, r, err)
	case errors.Is(err, domain.ErrUpstreamSubmit), errors.Is(err, domain.ErrUpstreamPoll):
		a.Logger.Warn().Err(err).Str("generation_id", g.ID.String()).Msg("generation upstream error")
		a.error(w, r, http.StatusInternalServerError, "upstream", g.ErrorMessage)
	case err != nil:
		a.fail(w, r, err)
	default:
		a.json(w, http.StatusOK, syncResult(g, middleware.LocaleFromContext(r.Context())))
	}
}

// wait reports whether the request runs inline. ?wait overrides the default.
func (a *App) wait(r *http.Request) bool {
	if v := r.URL.Query().Get("wait"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return a.SyncGeneration
}

func syncResult(g *domain.Generation, locale string) map[string]any {
	if g.Status != domain.GenerationCompleted {
		return map[string]any{
			"success":       false,
			"generation_id": g.ID.String(),
			"message":       i18n.Translate(locale, g.ErrorMessage),
		}
	}
	out := map[string]any{
		"success":       true,
		"generation_id": g.ID.String(),
		"cost":          json.Number(g.Cost.String()),
	}
	if g.Kind == domain.KindSpeech {
		out["audioUrl"] = g.ResultURL
		out["wordCount"] = g.WordCount
	} else {
		out["imageUrl"] = g.ResultURL
	}
	return out
}
