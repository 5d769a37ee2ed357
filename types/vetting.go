package types

import "time"

// VettingResult records one trust-score prediction returned by the AI service
// for an account. Kept as an audit trail; the latest score also lands on the
// account's Profile.
type VettingResult struct {
	ID             int64     `json:"id" db:"id"`
	UserUID        string    `json:"userId" db:"user_uid"`
	Score          float64   `json:"score" db:"score"`
	Flags          string    `json:"flags,omitempty" db:"flags"`
	ScoreBreakdown string    `json:"scoreBreakdown,omitempty" db:"score_breakdown"`
	AIFeedback     string    `json:"aiFeedback,omitempty" db:"ai_feedback"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
