package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/techtrust/backend/types"
)

// ClaimRepository handles persistence for claims.
type ClaimRepository struct {
	db *sql.DB
}

func NewClaimRepository(db *sql.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) Get(ctx context.Context, id int64) (types.Claim, error) {
	const query = `
		SELECT id, claim_text, evidence_key, created_at, updated_at
		FROM claims
		WHERE id = $1`
	var claim types.Claim
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&claim.ID,
		&claim.Text,
		&claim.EvidenceKey,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Claim{}, ErrNotFound
		}
		return types.Claim{}, err
	}
	claim.HasEvidence = claim.EvidenceKey != ""
	return claim, nil
}

func (r *ClaimRepository) List(ctx context.Context) ([]types.Claim, error) {
	const query = `
		SELECT id, claim_text, evidence_key, created_at, updated_at
		FROM claims
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []types.Claim
	for rows.Next() {
		var claim types.Claim
		if err := rows.Scan(
			&claim.ID,
			&claim.Text,
			&claim.EvidenceKey,
			&claim.CreatedAt,
			&claim.UpdatedAt,
		); err != nil {
			return nil, err
		}
		claim.HasEvidence = claim.EvidenceKey != ""
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

func (r *ClaimRepository) Create(ctx context.Context, claim types.Claim) (types.Claim, error) {
	now := time.Now()
	claim.CreatedAt = now
	claim.UpdatedAt = now

	const query = `
		INSERT INTO claims (claim_text, evidence_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		claim.Text,
		claim.EvidenceKey,
		claim.CreatedAt,
		claim.UpdatedAt,
	).Scan(&claim.ID); err != nil {
		return types.Claim{}, err
	}
	return claim, nil
}

// SetEvidenceKey binds an uploaded evidence object to a claim.
func (r *ClaimRepository) SetEvidenceKey(ctx context.Context, id int64, key string) error {
	const query = `UPDATE claims SET evidence_key = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, key, time.Now())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ClaimRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM claims WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
