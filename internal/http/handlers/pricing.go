package handlers

import (
	"errors"
	"net/http"

	"highbid/internal/domain"
	"highbid/internal/i18n"
)

// ImagePricing handles GET /api/pricing.
func (a *App) ImagePricing(w http.ResponseWriter, r *http.Request) {
	prices, err := a.Pricing.ImagePrices(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("load image pricing")
		a.error(w, r, http.StatusInternalServerError, "internal", "Failed to fetch pricing")
		return
	}
	if prices == nil {
		prices = []domain.PriceEntry{}
	}
	a.json(w, http.StatusOK, map[string]any{"pricing": prices})
}

// UpdateImagePricing handles POST /api/pricing with {pricing:[{size_key, price}]}.
func (a *App) UpdateImagePricing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pricing []domain.PriceEntry `json:"pricing"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Pricing == nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "Invalid pricing data")
		return
	}
	if err := a.Pricing.UpdateImagePrices(r.Context(), req.Pricing); err != nil {
		a.pricingError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "message": "Pricing updated successfully"})
}

// SpeechPricing handles GET /api/tts/pricing.
func (a *App) SpeechPricing(w http.ResponseWriter, r *http.Request) {
	rates, err := a.Pricing.SpeechRates(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("load tts pricing")
		a.error(w, r, http.StatusInternalServerError, "internal", "Failed to fetch pricing")
		return
	}
	if rates == nil {
		rates = []domain.SpeechRate{}
	}
	a.json(w, http.StatusOK, map[string]any{"pricing": rates})
}

// UpdateSpeechPricing handles POST /api/tts/pricing with {pricing:[{id, price}]}.
func (a *App) UpdateSpeechPricing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pricing []domain.SpeechRate `json:"pricing"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Pricing == nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "Invalid pricing data")
		return
	}
	if err := a.Pricing.UpdateSpeechRates(r.Context(), req.Pricing); err != nil {
		a.pricingError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "message": "TTS pricing updated successfully"})
}

func (a *App) pricingError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *domain.InvalidInputError
	if errors.As(err, &invalid) {
		a.error(w, r, http.StatusBadRequest, "bad_request", invalid.Error())
		return
	}
	a.Logger.Error().Err(err).Msg("update pricing")
	a.error(w, r, http.StatusInternalServerError, "internal", i18n.MsgInternal)
}
