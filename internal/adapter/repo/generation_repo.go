package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"highbid/internal/domain"
	"highbid/internal/infra"
	"highbid/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Admit reserves the cost and inserts the record in one statement. With a
// positive lease the record starts generating, held by the caller.
func (r *GenerationRepositoryPG) Admit(ctx context.Context, g *domain.Generation, lease time.Duration) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	row := r.sql.QueryRow(ctx, sqlinline.QAdmitGeneration,
		g.ID,
		g.UserID,
		string(g.Kind),
		g.Prompt,
		g.Size,
		g.WordCount,
		g.Cost,
		g.MatchKey,
		g.CorrelationID,
		int(lease.Seconds()),
	)
	var id uuid.UUID
	if err := row.Scan(&id, &g.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrInsufficientFunds
		}
		return fmt.Errorf("%w: admit generation: %v", domain.ErrPersistence, err)
	}
	g.Status = domain.GenerationPending
	if lease > 0 {
		g.Status = domain.GenerationGenerating
		g.Attempts = 1
	}
	g.ChargeStatus = domain.ChargeNone
	g.UpdatedAt = g.CreatedAt
	return nil
}

func (r *GenerationRepositoryPG) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Generation, error) {
	return r.one(r.sql.QueryRow(ctx, sqlinline.QSelectGeneration, id, userID))
}

func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id uuid.UUID) (*domain.Generation, error) {
	return r.one(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationByID, id))
}

func (r *GenerationRepositoryPG) List(ctx context.Context, userID uuid.UUID, kind domain.Kind, limit int) ([]domain.Generation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListGenerations, userID, string(kind), limit)
	if err != nil {
		return nil, err
	}
	return collectGenerations(rows)
}

// Claim returns domain.ErrNotFound when nothing is runnable.
func (r *GenerationRepositoryPG) Claim(ctx context.Context, lease time.Duration) (*domain.Generation, error) {
	return r.one(r.sql.QueryRow(ctx, sqlinline.QClaimGeneration, int(lease.Seconds())))
}

func (r *GenerationRepositoryPG) MarkSubmitted(ctx context.Context, id uuid.UUID) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkGenerationSubmitted, id)
	return err
}

func (r *GenerationRepositoryPG) Complete(ctx context.Context, id uuid.UUID, resultURL string) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteGeneration, id, resultURL)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *GenerationRepositoryPG) Fail(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	var n int
	if err := r.sql.QueryRow(ctx, sqlinline.QFailGeneration, id, message).Scan(&n); err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *GenerationRepositoryPG) SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QSetGenerationArchiveKey, id, key)
	return err
}

func (r *GenerationRepositoryPG) ListUncharged(ctx context.Context, grace time.Duration, limit int) ([]domain.Generation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListUnchargedGenerations, limit, int(grace.Seconds()))
	if err != nil {
		return nil, err
	}
	return collectGenerations(rows)
}

func (r *GenerationRepositoryPG) one(row pgx.Row) (*domain.Generation, error) {
	g, err := scanGeneration(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

func scanGeneration(row pgx.Row) (*domain.Generation, error) {
	var g domain.Generation
	if err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.Kind,
		&g.Prompt,
		&g.Size,
		&g.WordCount,
		&g.Cost,
		&g.Status,
		&g.MatchKey,
		&g.CorrelationID,
		&g.ResultURL,
		&g.ErrorMessage,
		&g.ArchiveKey,
		&g.Attempts,
		&g.SubmittedAt,
		&g.ChargeStatus,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &g, nil
}

func collectGenerations(rows pgx.Rows) ([]domain.Generation, error) {
	defer rows.Close()
	var out []domain.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
