package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/techtrust/backend/types"
)

// VettingRepository persists trust-score prediction results.
type VettingRepository struct {
	db *sql.DB
}

func NewVettingRepository(db *sql.DB) *VettingRepository {
	return &VettingRepository{db: db}
}

func (r *VettingRepository) Create(ctx context.Context, result types.VettingResult) (types.VettingResult, error) {
	result.CreatedAt = time.Now()

	const query = `
		INSERT INTO vetting_results (user_uid, score, flags, score_breakdown, ai_feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		result.UserUID,
		result.Score,
		result.Flags,
		result.ScoreBreakdown,
		result.AIFeedback,
		result.CreatedAt,
	).Scan(&result.ID); err != nil {
		return types.VettingResult{}, err
	}
	return result, nil
}

// ListByUserUID returns an account's vetting history, newest first.
func (r *VettingRepository) ListByUserUID(ctx context.Context, uid string) ([]types.VettingResult, error) {
	const query = `
		SELECT id, user_uid, score, flags, score_breakdown, ai_feedback, created_at
		FROM vetting_results
		WHERE user_uid = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []types.VettingResult
	for rows.Next() {
		var result types.VettingResult
		if err := rows.Scan(
			&result.ID,
			&result.UserUID,
			&result.Score,
			&result.Flags,
			&result.ScoreBreakdown,
			&result.AIFeedback,
			&result.CreatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
