// Package memstore implements the domain repositories in memory with the same
// reservation and terminal-transition guarantees as the Postgres statements.
// Tests across the module run the real services against it.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"highbid/internal/domain"
)

type Store struct {
	mu sync.Mutex

	balances     map[uuid.UUID]*domain.Balance
	transactions []domain.Transaction
	generations  map[uuid.UUID]*generation
	order        []uuid.UUID
	imagePrices  map[string]domain.PriceEntry
	speechRates  map[int]domain.SpeechRate
	tokens       map[uuid.UUID]*domain.APIToken

	pricingErr     error
	chargeErr      error
	transactionErr error
	touchErr       error

	now func() time.Time
}

type generation struct {
	domain.Generation
	leaseExpires *time.Time
}

func New() *Store {
	return &Store{
		balances:    map[uuid.UUID]*domain.Balance{},
		generations: map[uuid.UUID]*generation{},
		imagePrices: map[string]domain.PriceEntry{},
		speechRates: map[int]domain.SpeechRate{},
		tokens:      map[uuid.UUID]*domain.APIToken{},
		now:         time.Now,
	}
}

// SetClock replaces time.Now for lease and timestamp handling.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) SetBalance(userID uuid.UUID, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance(userID).Balance = amount
}

func (s *Store) SetImagePrice(size string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imagePrices[size] = domain.PriceEntry{SizeKey: size, Price: price, UpdatedAt: s.now()}
}

func (s *Store) SetSpeechRate(price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speechRates[1] = domain.SpeechRate{ID: 1, Price: price, UpdatedAt: s.now()}
}

// FailPricing makes every pricing read fail with err.
func (s *Store) FailPricing(err error) { s.mu.Lock(); s.pricingErr = err; s.mu.Unlock() }

// FailCharge makes Charge fail with err until cleared with nil.
func (s *Store) FailCharge(err error) { s.mu.Lock(); s.chargeErr = err; s.mu.Unlock() }

// FailTransactions makes AppendTransaction fail with err.
func (s *Store) FailTransactions(err error) { s.mu.Lock(); s.transactionErr = err; s.mu.Unlock() }

// FailTouch makes TouchLastUsed fail with err.
func (s *Store) FailTouch(err error) { s.mu.Lock(); s.touchErr = err; s.mu.Unlock() }

// GenerationCount returns the number of stored records.
func (s *Store) GenerationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.generations)
}

// AllTransactions returns every ledger entry in insertion order.
func (s *Store) AllTransactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// ExpireLease makes a generating record claimable again.
func (s *Store) ExpireLease(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.generations[id]; ok {
		past := s.now().Add(-time.Second)
		g.leaseExpires = &past
	}
}

func (s *Store) balance(userID uuid.UUID) *domain.Balance {
	b, ok := s.balances[userID]
	if !ok {
		b = &domain.Balance{UserID: userID}
		s.balances[userID] = b
	}
	return b
}

// Generations

func (s *Store) Admit(ctx context.Context, g *domain.Generation, lease time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if !g.Cost.IsZero() {
		b, ok := s.balances[g.UserID]
		if !ok || b.Available().LessThan(g.Cost) {
			return domain.ErrInsufficientFunds
		}
		b.Reserved = b.Reserved.Add(g.Cost)
	}
	now := s.now()
	g.Status = domain.GenerationPending
	g.ChargeStatus = domain.ChargeNone
	g.CreatedAt, g.UpdatedAt = now, now
	rec := &generation{}
	if lease > 0 {
		expires := now.Add(lease)
		rec.leaseExpires = &expires
		g.Status = domain.GenerationGenerating
		g.Attempts = 1
	}
	rec.Generation = *g
	s.generations[g.ID] = rec
	s.order = append(s.order, g.ID)
	return nil
}

func (s *Store) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok || g.UserID != userID {
		return nil, domain.ErrNotFound
	}
	out := g.Generation
	return &out, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := g.Generation
	return &out, nil
}

func (s *Store) List(ctx context.Context, userID uuid.UUID, kind domain.Kind, limit int) ([]domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Generation
	for i := len(s.order) - 1; i >= 0; i-- {
		g := s.generations[s.order[i]]
		if g.UserID != userID || (kind != "" && g.Kind != kind) {
			continue
		}
		out = append(out, g.Generation)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Claim(ctx context.Context, lease time.Duration) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, id := range s.order {
		g := s.generations[id]
		runnable := g.Status == domain.GenerationPending ||
			(g.Status == domain.GenerationGenerating && g.leaseExpires != nil && g.leaseExpires.Before(now))
		if !runnable {
			continue
		}
		expires := now.Add(lease)
		g.leaseExpires = &expires
		g.Status = domain.GenerationGenerating
		g.Attempts++
		g.UpdatedAt = now
		out := g.Generation
		return &out, nil
	}
	return nil, domain.ErrNotFound
}

func (s *Store) MarkSubmitted(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.generations[id]; ok && g.SubmittedAt == nil {
		now := s.now()
		g.SubmittedAt = &now
	}
	return nil
}

func (s *Store) Complete(ctx context.Context, id uuid.UUID, resultURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok || g.Status.Terminal() {
		return false, nil
	}
	g.Status = domain.GenerationCompleted
	g.ResultURL = resultURL
	g.leaseExpires = nil
	g.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) Fail(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok || g.Status.Terminal() {
		return false, nil
	}
	g.Status = domain.GenerationFailed
	g.ErrorMessage = message
	g.leaseExpires = nil
	g.UpdatedAt = s.now()
	if b, ok := s.balances[g.UserID]; ok {
		b.Reserved = decimal.Max(b.Reserved.Sub(g.Cost), decimal.Zero)
	}
	return true, nil
}

func (s *Store) SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.generations[id]; ok {
		g.ArchiveKey = key
	}
	return nil
}

func (s *Store) ListUncharged(ctx context.Context, grace time.Duration, limit int) ([]domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-grace)
	var out []domain.Generation
	for _, id := range s.order {
		g := s.generations[id]
		if g.Status != domain.GenerationCompleted {
			continue
		}
		if g.ChargeStatus == domain.ChargeFailed || (g.ChargeStatus == domain.ChargeNone && g.UpdatedAt.Before(cutoff)) {
			out = append(out, g.Generation)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Ledger

func (s *Store) Balance(ctx context.Context, userID uuid.UUID) (domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.balances[userID]; ok {
		return *b, nil
	}
	return domain.Balance{UserID: userID}, nil
}

func (s *Store) Adjust(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, op domain.AdjustOp) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.balance(userID)
	if op == domain.AdjustAdd {
		b.Balance = b.Balance.Add(amount)
	} else {
		b.Balance = b.Balance.Sub(amount)
	}
	return b.Balance, nil
}

func (s *Store) Charge(ctx context.Context, generationID uuid.UUID) (domain.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chargeErr != nil {
		return domain.Charge{}, s.chargeErr
	}
	g, ok := s.generations[generationID]
	if !ok || g.Status != domain.GenerationCompleted || g.ChargeStatus == domain.ChargeCharged {
		return domain.Charge{}, domain.ErrNotFound
	}
	g.ChargeStatus = domain.ChargeCharged
	b := s.balance(g.UserID)
	b.Balance = b.Balance.Sub(g.Cost)
	b.Reserved = decimal.Max(b.Reserved.Sub(g.Cost), decimal.Zero)
	return domain.Charge{GenerationID: g.ID, UserID: g.UserID, Amount: g.Cost, Balance: b.Balance}, nil
}

func (s *Store) MarkChargeFailed(ctx context.Context, generationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.generations[generationID]; ok && g.ChargeStatus == domain.ChargeNone {
		g.ChargeStatus = domain.ChargeFailed
	}
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transactionErr != nil {
		return s.transactionErr
	}
	tx.ID = uuid.New()
	if tx.Status == "" {
		tx.Status = domain.TransactionCompleted
	}
	tx.CreatedAt = s.now()
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *Store) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID != userID {
			continue
		}
		out = append(out, s.transactions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Pricing

func (s *Store) ImagePrices(ctx context.Context) ([]domain.PriceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pricingErr != nil {
		return nil, s.pricingErr
	}
	out := make([]domain.PriceEntry, 0, len(s.imagePrices))
	for _, p := range s.imagePrices {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SizeKey < out[j].SizeKey })
	return out, nil
}

func (s *Store) ImagePrice(ctx context.Context, size string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pricingErr != nil {
		return decimal.Zero, s.pricingErr
	}
	p, ok := s.imagePrices[size]
	if !ok {
		return decimal.Zero, domain.ErrNotFound
	}
	return p.Price, nil
}

func (s *Store) UpdateImagePrice(ctx context.Context, size string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.imagePrices[size]
	if !ok {
		return domain.ErrNotFound
	}
	p.Price = price
	p.UpdatedAt = s.now()
	s.imagePrices[size] = p
	return nil
}

func (s *Store) SpeechRates(ctx context.Context) ([]domain.SpeechRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pricingErr != nil {
		return nil, s.pricingErr
	}
	var out []domain.SpeechRate
	for _, r := range s.speechRates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateSpeechRate(ctx context.Context, id int, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.speechRates[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Price = price
	r.UpdatedAt = s.now()
	s.speechRates[id] = r
	return nil
}

// Tokens

func (s *Store) Create(ctx context.Context, t *domain.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = s.now()
	t.IsActive = true
	cp := *t
	s.tokens[t.ID] = &cp
	return nil
}

// PutToken stores t as given, including inactive or expired tokens.
func (s *Store) PutToken(t domain.APIToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.tokens[t.ID] = &t
}

func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.APIToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Delete(ctx context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok || t.UserID != userID {
		return domain.ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

func (s *Store) FindByToken(ctx context.Context, token string) (*domain.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.Token == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.touchErr != nil {
		return s.touchErr
	}
	if t, ok := s.tokens[id]; ok {
		now := s.now()
		t.LastUsedAt = &now
	}
	return nil
}

// Stats

func (s *Store) Summary(ctx context.Context) (domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.Stats{
		Users:              len(s.balances),
		GenerationsByState: map[string]int{},
		GenerationsByKind:  map[string]int{},
	}
	total, revenue := decimal.Zero, decimal.Zero
	for _, b := range s.balances {
		total = total.Add(b.Balance)
	}
	for _, tx := range s.transactions {
		if tx.Type == domain.TransactionDebit && tx.Status == domain.TransactionCompleted {
			revenue = revenue.Add(tx.Amount)
		}
	}
	cutoff := s.now().Add(-24 * time.Hour)
	for _, g := range s.generations {
		stats.GenerationsByState[string(g.Status)]++
		stats.GenerationsByKind[string(g.Kind)]++
		if g.CreatedAt.After(cutoff) {
			stats.Last24h++
		}
		if g.ChargeStatus == domain.ChargeFailed {
			stats.ChargeFailures++
		}
	}
	stats.TotalBalance = total.StringFixed(2)
	stats.Revenue = revenue.StringFixed(2)
	return stats, nil
}

var (
	_ domain.GenerationRepository = (*Store)(nil)
	_ domain.LedgerRepository     = (*Store)(nil)
	_ domain.PricingRepository    = (*Store)(nil)
	_ domain.TokenRepository      = (*Store)(nil)
	_ domain.StatsRepository      = (*Store)(nil)
)
