package repo

import (
	"context"

	"github.com/shopspring/decimal"

	"highbid/internal/domain"
	"highbid/internal/infra"
	"highbid/internal/sqlinline"
)

// PricingRepositoryPG implements domain.PricingRepository.
type PricingRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewPricingRepository(sql infra.SQLExecutor) *PricingRepositoryPG {
	return &PricingRepositoryPG{sql: sql}
}

func (r *PricingRepositoryPG) ImagePrices(ctx context.Context) ([]domain.PriceEntry, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListImagePrices)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceEntry
	for rows.Next() {
		var p domain.PriceEntry
		if err := rows.Scan(&p.SizeKey, &p.Price, &p.Description, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PricingRepositoryPG) ImagePrice(ctx context.Context, size string) (decimal.Decimal, error) {
	var price decimal.Decimal
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectImagePrice, size).Scan(&price); err != nil {
		if infra.IsNoRows(err) {
			return decimal.Zero, domain.ErrNotFound
		}
		return decimal.Zero, err
	}
	return price, nil
}

func (r *PricingRepositoryPG) UpdateImagePrice(ctx context.Context, size string, price decimal.Decimal) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateImagePrice, size, price)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PricingRepositoryPG) SpeechRates(ctx context.Context) ([]domain.SpeechRate, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListSpeechRates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SpeechRate
	for rows.Next() {
		var s domain.SpeechRate
		if err := rows.Scan(&s.ID, &s.Price, &s.Description, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PricingRepositoryPG) UpdateSpeechRate(ctx context.Context, id int, price decimal.Decimal) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateSpeechRate, id, price)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.PricingRepository = (*PricingRepositoryPG)(nil)
