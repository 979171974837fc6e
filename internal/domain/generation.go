package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind distinguishes the two generation products.
type Kind string

const (
	KindImage  Kind = "image"
	KindSpeech Kind = "speech"
)

func (k Kind) Valid() bool {
	return k == KindImage || k == KindSpeech
}

// GenerationStatus is the record lifecycle. Pending records wait for a worker,
// generating records are in flight; completed and failed are terminal.
type GenerationStatus string

const (
	GenerationPending    GenerationStatus = "pending"
	GenerationGenerating GenerationStatus = "generating"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

func (s GenerationStatus) Terminal() bool {
	return s == GenerationCompleted || s == GenerationFailed
}

// ChargeStatus tracks the single debit owed by a completed generation.
type ChargeStatus string

const (
	ChargeNone    ChargeStatus = "none"
	ChargeCharged ChargeStatus = "charged"
	ChargeFailed  ChargeStatus = "failed"
)

// Generation is the persisted record of one metered request. Cost is fixed at
// admission and is the amount charged on completion.
type Generation struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Kind          Kind
	Prompt        string
	Size          string
	WordCount     int
	Cost          decimal.Decimal
	Status        GenerationStatus
	MatchKey      string
	CorrelationID string
	ResultURL     string
	ErrorMessage  string
	ArchiveKey    string
	Attempts      int
	SubmittedAt   *time.Time
	ChargeStatus  ChargeStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Submitted reports whether the upstream task was already created.
func (g Generation) Submitted() bool {
	return g.SubmittedAt != nil
}

// ImageMatchKey composes the prompt sent upstream for an image request.
func ImageMatchKey(prompt, size string) string {
	return prompt + " with this size " + size
}

// WordCount counts whitespace-delimited tokens of the trimmed text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
