package postgres

import (
	"context"

	"github.com/chrisdamba/routesim/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResultRepository struct {
	pool *pgxpool.Pool
}

func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

const insertResult = `
    INSERT INTO simulation_results (
        id, tracking_no, cost_factor, conditions, path, total_cost, status, planned_at
    ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

func (r *ResultRepository) BulkCreate(ctx context.Context, results []*models.SimulationResult) error {
	batch := &pgx.Batch{}
	for _, res := range results {
		batch.Queue(insertResult, resultArgs(res)...)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *ResultRepository) Create(ctx context.Context, result *models.SimulationResult) error {
	_, err := r.pool.Exec(ctx, insertResult, resultArgs(result)...)
	return err
}

func (r *ResultRepository) GetByTrackingNo(ctx context.Context, trackingNo string) ([]*models.SimulationResult, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, tracking_no, cost_factor, conditions, path, total_cost, status, planned_at
        FROM simulation_results
        WHERE tracking_no = $1
        ORDER BY planned_at, id
    `, trackingNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.SimulationResult
	for rows.Next() {
		res := &models.SimulationResult{}
		err := rows.Scan(
			&res.ID,
			&res.TrackingNo,
			&res.CostFactor,
			&res.Conditions,
			&res.Path,
			&res.TotalCost,
			&res.Status,
			&res.PlannedAt,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *ResultRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM simulation_results").Scan(&count)
	return count, err
}

func (r *ResultRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM simulation_results")
	return err
}

func resultArgs(res *models.SimulationResult) []any {
	return []any{
		res.ID,
		res.TrackingNo,
		res.CostFactor,
		res.Conditions,
		res.Path,
		res.TotalCost,
		res.Status,
		res.PlannedAt,
	}
}
