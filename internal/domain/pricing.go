package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	// DefaultImagePrice applies when a size has no price entry or the lookup fails.
	DefaultImagePrice = decimal.RequireFromString("0.50")
	// DefaultSpeechRate is the per-word fallback for text-to-speech.
	DefaultSpeechRate = decimal.RequireFromString("0.003")
)

// ImageSizes lists the resolutions offered by the image product.
var ImageSizes = []string{"512x512", "1024x1024", "1024x1792", "1792x1024"}

// PriceEntry is the price of one image size.
type PriceEntry struct {
	SizeKey     string          `json:"size_key"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SpeechRate is the per-word text-to-speech price.
type SpeechRate struct {
	ID          int             `json:"id"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Quote is the admission price of a request.
type Quote struct {
	Cost      decimal.Decimal
	WordCount int
	Fallback  bool
}
