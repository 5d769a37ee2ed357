package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"github.com/techtrust/backend/internal/storage"
	"github.com/techtrust/backend/types"
)

// ErrStorageNotConfigured is returned for evidence operations when no object
// storage backend is configured.
var ErrStorageNotConfigured = errors.New("evidence storage not configured")

// ErrNoEvidence is returned when a claim has no attached evidence object.
var ErrNoEvidence = errors.New("claim has no evidence")

// ClaimRepository defines persistence operations for claims.
type ClaimRepository interface {
	Get(ctx context.Context, id int64) (types.Claim, error)
	List(ctx context.Context) ([]types.Claim, error)
	Create(ctx context.Context, claim types.Claim) (types.Claim, error)
	SetEvidenceKey(ctx context.Context, id int64, key string) error
	Delete(ctx context.Context, id int64) error
}

// ClaimService encapsulates claim use-cases, including evidence documents
// kept in object storage. storage may be nil when no backend is configured.
type ClaimService struct {
	repo    ClaimRepository
	storage *storage.Storage
}

func NewClaimService(repo ClaimRepository, objectStorage *storage.Storage) *ClaimService {
	return &ClaimService{repo: repo, storage: objectStorage}
}

func (s *ClaimService) Get(ctx context.Context, id int64) (types.Claim, error) {
	return s.repo.Get(ctx, id)
}

func (s *ClaimService) List(ctx context.Context) ([]types.Claim, error) {
	return s.repo.List(ctx)
}

func (s *ClaimService) Create(ctx context.Context, claim types.Claim) (types.Claim, error) {
	return s.repo.Create(ctx, claim)
}

// Delete removes a claim and best-effort deletes its evidence object.
func (s *ClaimService) Delete(ctx context.Context, id int64) error {
	claim, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if claim.EvidenceKey != "" && s.storage != nil {
		if err := s.storage.Delete(ctx, claim.EvidenceKey); err != nil {
			log.Printf("claims: deleting evidence object %s: %v", claim.EvidenceKey, err)
		}
	}
	return nil
}

// AttachEvidence uploads a supporting document for a claim and binds the
// object key to the claim record.
func (s *ClaimService) AttachEvidence(ctx context.Context, id int64, filename, contentType string, data []byte) (types.Claim, error) {
	if s.storage == nil {
		return types.Claim{}, ErrStorageNotConfigured
	}
	claim, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Claim{}, err
	}

	key := fmt.Sprintf("claims/%d/%s-%s", id, uuid.NewString(), filename)
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Claim{}, fmt.Errorf("uploading evidence: %w", err)
	}
	if err := s.repo.SetEvidenceKey(ctx, id, key); err != nil {
		return types.Claim{}, err
	}

	if claim.EvidenceKey != "" {
		if err := s.storage.Delete(ctx, claim.EvidenceKey); err != nil {
			log.Printf("claims: deleting replaced evidence object %s: %v", claim.EvidenceKey, err)
		}
	}

	claim.EvidenceKey = key
	claim.HasEvidence = true
	return claim, nil
}

// OpenEvidence streams a claim's evidence object.
func (s *ClaimService) OpenEvidence(ctx context.Context, id int64) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, ErrStorageNotConfigured
	}
	claim, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim.EvidenceKey == "" {
		return nil, ErrNoEvidence
	}
	return s.storage.Get(ctx, claim.EvidenceKey)
}
