package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/techtrust/backend/types"
)

// ProfileRepository handles persistence for professional profiles.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `
	id, user_uid, skills, experience, claim_text, trust_score, trust_score_data,
	github_username, vetting_summary, job_title, location, created_at, updated_at`

func scanProfile(row *sql.Row) (types.Profile, error) {
	var profile types.Profile
	err := row.Scan(
		&profile.ID,
		&profile.UserUID,
		&profile.Skills,
		&profile.Experience,
		&profile.ClaimText,
		&profile.TrustScore,
		&profile.TrustScoreData,
		&profile.GithubUsername,
		&profile.VettingSummary,
		&profile.JobTitle,
		&profile.Location,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, err
	}
	return profile, nil
}

func (r *ProfileRepository) Get(ctx context.Context, id int64) (types.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.db.QueryRowContext(ctx, query, id))
}

func (r *ProfileRepository) GetByUserUID(ctx context.Context, uid string) (types.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE user_uid = $1`
	return scanProfile(r.db.QueryRowContext(ctx, query, uid))
}

func (r *ProfileRepository) List(ctx context.Context) ([]types.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProfiles(rows)
}

// ListByUserUIDs returns profiles for the given account UIDs, used by the
// vetted-professionals listing.
func (r *ProfileRepository) ListByUserUIDs(ctx context.Context, uids []string) ([]types.Profile, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE user_uid = ANY($1) ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(uids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProfiles(rows)
}

func (r *ProfileRepository) Create(ctx context.Context, profile types.Profile) (types.Profile, error) {
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	const query = `
		INSERT INTO profiles (user_uid, skills, experience, claim_text, trust_score,
			trust_score_data, github_username, vetting_summary, job_title, location,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		profile.UserUID,
		profile.Skills,
		profile.Experience,
		profile.ClaimText,
		profile.TrustScore,
		profile.TrustScoreData,
		profile.GithubUsername,
		profile.VettingSummary,
		profile.JobTitle,
		profile.Location,
		profile.CreatedAt,
		profile.UpdatedAt,
	).Scan(&profile.ID); err != nil {
		return types.Profile{}, translateError(err)
	}
	return profile, nil
}

func (r *ProfileRepository) Update(ctx context.Context, profile types.Profile) (types.Profile, error) {
	profile.UpdatedAt = time.Now()

	const query = `
		UPDATE profiles
		SET skills = $1,
			experience = $2,
			claim_text = $3,
			trust_score = $4,
			trust_score_data = $5,
			github_username = $6,
			vetting_summary = $7,
			job_title = $8,
			location = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		profile.Skills,
		profile.Experience,
		profile.ClaimText,
		profile.TrustScore,
		profile.TrustScoreData,
		profile.GithubUsername,
		profile.VettingSummary,
		profile.JobTitle,
		profile.Location,
		profile.UpdatedAt,
		profile.ID,
	)
	if err != nil {
		return types.Profile{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Profile{}, err
	}
	if affected == 0 {
		return types.Profile{}, ErrNotFound
	}
	return profile, nil
}

// UpsertByUserUID creates or refreshes the profile bound to an account,
// mirroring the trust-score proxy's write-back after a prediction.
func (r *ProfileRepository) UpsertByUserUID(ctx context.Context, profile types.Profile) (types.Profile, error) {
	now := time.Now()
	profile.UpdatedAt = now

	const query = `
		INSERT INTO profiles (user_uid, skills, experience, claim_text, trust_score,
			trust_score_data, github_username, vetting_summary, job_title, location,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (user_uid) DO UPDATE
		SET trust_score = EXCLUDED.trust_score,
			trust_score_data = EXCLUDED.trust_score_data,
			github_username = EXCLUDED.github_username,
			vetting_summary = EXCLUDED.vetting_summary,
			job_title = EXCLUDED.job_title,
			location = EXCLUDED.location,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		profile.UserUID,
		profile.Skills,
		profile.Experience,
		profile.ClaimText,
		profile.TrustScore,
		profile.TrustScoreData,
		profile.GithubUsername,
		profile.VettingSummary,
		profile.JobTitle,
		profile.Location,
		now,
	).Scan(&profile.ID, &profile.CreatedAt); err != nil {
		return types.Profile{}, err
	}
	return profile, nil
}

func collectProfiles(rows *sql.Rows) ([]types.Profile, error) {
	var profiles []types.Profile
	for rows.Next() {
		var profile types.Profile
		if err := rows.Scan(
			&profile.ID,
			&profile.UserUID,
			&profile.Skills,
			&profile.Experience,
			&profile.ClaimText,
			&profile.TrustScore,
			&profile.TrustScoreData,
			&profile.GithubUsername,
			&profile.VettingSummary,
			&profile.JobTitle,
			&profile.Location,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}
