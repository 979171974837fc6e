package repo

import (
	"context"

	"github.com/shopspring/decimal"

	"highbid/internal/domain"
	"highbid/internal/infra"
	"highbid/internal/sqlinline"
)

// StatsRepositoryPG implements domain.StatsRepository.
type StatsRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewStatsRepository(sql infra.SQLExecutor) *StatsRepositoryPG {
	return &StatsRepositoryPG{sql: sql}
}

func (r *StatsRepositoryPG) Summary(ctx context.Context) (domain.Stats, error) {
	var (
		stats   domain.Stats
		total   decimal.Decimal
		revenue decimal.Decimal
	)
	if err := r.sql.QueryRow(ctx, sqlinline.QAdminStats).
		Scan(&stats.Users, &total, &revenue, &stats.Last24h, &stats.ChargeFailures); err != nil {
		return domain.Stats{}, err
	}
	stats.TotalBalance = total.StringFixed(2)
	stats.Revenue = revenue.StringFixed(2)

	rows, err := r.sql.Query(ctx, sqlinline.QGenerationCounts)
	if err != nil {
		return domain.Stats{}, err
	}
	defer rows.Close()

	stats.GenerationsByState = map[string]int{}
	stats.GenerationsByKind = map[string]int{}
	for rows.Next() {
		var kind, status string
		var n int
		if err := rows.Scan(&kind, &status, &n); err != nil {
			return domain.Stats{}, err
		}
		stats.GenerationsByState[status] += n
		stats.GenerationsByKind[kind] += n
	}
	return stats, rows.Err()
}

var _ domain.StatsRepository = (*StatsRepositoryPG)(nil)
