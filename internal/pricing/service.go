// Package pricing quotes generation requests from the price tables.
package pricing

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"highbid/internal/domain"
	"highbid/internal/infra"
)

type Service struct {
	repo   domain.PricingRepository
	logger *infra.Logger
}

func NewService(repo domain.PricingRepository, logger *infra.Logger) *Service {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Service{repo: repo, logger: logger}
}

// QuoteImage prices one image of size. A missing entry or a failed lookup
// falls back to domain.DefaultImagePrice.
func (s *Service) QuoteImage(ctx context.Context, size string) domain.Quote {
	price, err := s.repo.ImagePrice(ctx, size)
	if err != nil {
		s.logger.Warn().Err(err).Str("size", size).Msg("image price lookup failed, using default")
		return domain.Quote{Cost: domain.DefaultImagePrice, Fallback: true}
	}
	return domain.Quote{Cost: price}
}

// QuoteSpeech prices text at the per-word rate times its word count.
func (s *Service) QuoteSpeech(ctx context.Context, text string) domain.Quote {
	words := domain.WordCount(text)
	rate, fallback := s.speechRate(ctx)
	return domain.Quote{Cost: rate.Mul(decimal.NewFromInt(int64(words))), WordCount: words, Fallback: fallback}
}

func (s *Service) speechRate(ctx context.Context) (decimal.Decimal, bool) {
	rates, err := s.repo.SpeechRates(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("speech rate lookup failed, using default")
		return domain.DefaultSpeechRate, true
	}
	if len(rates) == 0 {
		return domain.DefaultSpeechRate, true
	}
	return rates[0].Price, false
}

func (s *Service) ImagePrices(ctx context.Context) ([]domain.PriceEntry, error) {
	return s.repo.ImagePrices(ctx)
}

func (s *Service) SpeechRates(ctx context.Context) ([]domain.SpeechRate, error) {
	return s.repo.SpeechRates(ctx)
}

// UpdateImagePrices validates every entry before writing any of them.
func (s *Service) UpdateImagePrices(ctx context.Context, entries []domain.PriceEntry) error {
	if len(entries) == 0 {
		return &domain.InvalidInputError{Field: "pricing", Reason: "must not be empty"}
	}
	for _, e := range entries {
		if strings.TrimSpace(e.SizeKey) == "" {
			return &domain.InvalidInputError{Field: "size_key", Reason: "is required"}
		}
		if e.Price.IsNegative() {
			return &domain.InvalidInputError{Field: "price", Reason: "must not be negative"}
		}
	}
	for _, e := range entries {
		if err := s.repo.UpdateImagePrice(ctx, strings.TrimSpace(e.SizeKey), e.Price); err != nil {
			return fmt.Errorf("update pricing for %s: %w", e.SizeKey, err)
		}
		s.logger.Info().Str("size", e.SizeKey).Str("price", e.Price.String()).Msg("image price updated")
	}
	return nil
}

func (s *Service) UpdateSpeechRates(ctx context.Context, rates []domain.SpeechRate) error {
	if len(rates) == 0 {
		return &domain.InvalidInputError{Field: "pricing", Reason: "must not be empty"}
	}
	for _, r := range rates {
		if r.Price.IsNegative() {
			return &domain.InvalidInputError{Field: "price", Reason: "must not be negative"}
		}
	}
	for _, r := range rates {
		id := r.ID
		if id == 0 {
			id = 1
		}
		if err := s.repo.UpdateSpeechRate(ctx, id, r.Price); err != nil {
			return fmt.Errorf("update tts pricing %d: %w", id, err)
		}
		s.logger.Info().Int("id", id).Str("price", r.Price.String()).Msg("speech rate updated")
	}
	return nil
}
