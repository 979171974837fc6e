package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"highbid/internal/domain"
	"highbid/internal/infra"
	"highbid/internal/sqlinline"
)

// TokenRepositoryPG implements domain.TokenRepository.
type TokenRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewTokenRepository(sql infra.SQLExecutor) *TokenRepositoryPG {
	return &TokenRepositoryPG{sql: sql}
}

func (r *TokenRepositoryPG) Create(ctx context.Context, t *domain.APIToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertAPIToken, t.ID, t.UserID, t.Name, t.Token, t.ExpiresAt)
	if err := row.Scan(&t.CreatedAt, &t.IsActive); err != nil {
		if infra.IsUniqueViolation(err) {
			return fmt.Errorf("%w: token already exists", domain.ErrPersistence)
		}
		return err
	}
	return nil
}

func (r *TokenRepositoryPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.APIToken, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListAPITokens, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.APIToken
	for rows.Next() {
		var t domain.APIToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Token, &t.CreatedAt, &t.LastUsedAt, &t.ExpiresAt, &t.IsActive); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TokenRepositoryPG) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteAPIToken, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TokenRepositoryPG) FindByToken(ctx context.Context, token string) (*domain.APIToken, error) {
	var t domain.APIToken
	err := r.sql.QueryRow(ctx, sqlinline.QSelectAPIToken, token).
		Scan(&t.ID, &t.UserID, &t.Name, &t.Token, &t.CreatedAt, &t.LastUsedAt, &t.ExpiresAt, &t.IsActive)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TokenRepositoryPG) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.sql.Exec(ctx, sqlinline.QTouchAPIToken, id)
	return err
}

var _ domain.TokenRepository = (*TokenRepositoryPG)(nil)
