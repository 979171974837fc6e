package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"highbid/internal/adapter/memstore"
	"highbid/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuoteImage(t *testing.T) {
	store := memstore.New()
	store.SetImagePrice("1024x1024", dec("1.00"))
	svc := NewService(store, nil)

	q := svc.QuoteImage(context.Background(), "1024x1024")
	if !q.Cost.Equal(dec("1.00")) || q.Fallback {
		t.Fatalf("unexpected quote %+v", q)
	}

	q = svc.QuoteImage(context.Background(), "2048x2048")
	if !q.Cost.Equal(dec("0.50")) || !q.Fallback {
		t.Fatalf("expected fallback quote, got %+v", q)
	}
}

func TestQuoteImageLookupError(t *testing.T) {
	store := memstore.New()
	store.SetImagePrice("1024x1024", dec("1.00"))
	store.FailPricing(errors.New("db down"))
	q := NewService(store, nil).QuoteImage(context.Background(), "1024x1024")
	if !q.Cost.Equal(domain.DefaultImagePrice) || !q.Fallback {
		t.Fatalf("expected fallback quote, got %+v", q)
	}
}

func TestQuoteSpeech(t *testing.T) {
	store := memstore.New()
	store.SetSpeechRate(dec("0.003"))
	svc := NewService(store, nil)

	text := ""
	for i := 0; i < 50; i++ {
		text += " word"
	}
	q := svc.QuoteSpeech(context.Background(), text)
	if q.WordCount != 50 || !q.Cost.Equal(dec("0.15")) {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestQuoteSpeechFallbackRate(t *testing.T) {
	q := NewService(memstore.New(), nil).QuoteSpeech(context.Background(), "one two")
	if !q.Fallback || !q.Cost.Equal(dec("0.006")) {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestUpdateImagePricesVisibleToNextQuote(t *testing.T) {
	store := memstore.New()
	store.SetImagePrice("512x512", dec("0.25"))
	svc := NewService(store, nil)

	if err := svc.UpdateImagePrices(context.Background(), []domain.PriceEntry{{SizeKey: "512x512", Price: dec("0.40")}}); err != nil {
		t.Fatalf("UpdateImagePrices error: %v", err)
	}
	if q := svc.QuoteImage(context.Background(), "512x512"); !q.Cost.Equal(dec("0.40")) {
		t.Fatalf("expected updated price, got %s", q.Cost)
	}
}

func TestUpdateImagePricesValidation(t *testing.T) {
	store := memstore.New()
	store.SetImagePrice("512x512", dec("0.25"))
	svc := NewService(store, nil)

	cases := []struct {
		name    string
		entries []domain.PriceEntry
		want    error
	}{
		{name: "empty", entries: nil, want: domain.ErrInvalidInput},
		{name: "negative", entries: []domain.PriceEntry{{SizeKey: "512x512", Price: dec("-1")}}, want: domain.ErrInvalidInput},
		{name: "blank size", entries: []domain.PriceEntry{{SizeKey: " ", Price: dec("1")}}, want: domain.ErrInvalidInput},
		{name: "unknown size", entries: []domain.PriceEntry{{SizeKey: "9x9", Price: dec("1")}}, want: domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.UpdateImagePrices(context.Background(), tc.entries); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if q := svc.QuoteImage(context.Background(), "512x512"); !q.Cost.Equal(dec("0.25")) {
		t.Fatalf("rejected updates must not change prices, got %s", q.Cost)
	}
}

func TestUpdateSpeechRates(t *testing.T) {
	store := memstore.New()
	store.SetSpeechRate(dec("0.003"))
	svc := NewService(store, nil)
	if err := svc.UpdateSpeechRates(context.Background(), []domain.SpeechRate{{Price: dec("0.005")}}); err != nil {
		t.Fatalf("UpdateSpeechRates error: %v", err)
	}
	if q := svc.QuoteSpeech(context.Background(), "a b"); !q.Cost.Equal(dec("0.01")) {
		t.Fatalf("unexpected quote %s", q.Cost)
	}
}
