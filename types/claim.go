package types

import "time"

// Claim is a free-text skill or experience claim submitted by a professional.
// EvidenceKey points at an uploaded supporting document in object storage;
// empty when no evidence has been attached.
type Claim struct {
	ID          int64     `json:"id" db:"id"`
	Text        string    `json:"claim" db:"claim_text"`
	EvidenceKey string    `json:"-" db:"evidence_key"`
	HasEvidence bool      `json:"hasEvidence" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
