package types

import "time"

// Profile holds a professional's vetting-relevant data. One per account,
// keyed by the account's public UID; the trust-score proxy upserts it after
// each successful prediction.
type Profile struct {
	ID             int64     `json:"id" db:"id"`
	UserUID        string    `json:"userId" db:"user_uid"`
	Skills         string    `json:"skills" db:"skills"`
	Experience     string    `json:"experience" db:"experience"`
	ClaimText      string    `json:"claimText" db:"claim_text"`
	TrustScore     string    `json:"currentTrustScore" db:"trust_score"`
	TrustScoreData string    `json:"trustScoreData,omitempty" db:"trust_score_data"`
	GithubUsername string    `json:"githubUsername,omitempty" db:"github_username"`
	VettingSummary string    `json:"vettingSummary,omitempty" db:"vetting_summary"`
	JobTitle       string    `json:"jobTitle,omitempty" db:"job_title"`
	Location       string    `json:"location,omitempty" db:"location"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
