package services

import (
	"context"

	"github.com/techtrust/backend/types"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	Get(ctx context.Context, id int64) (types.Profile, error)
	GetByUserUID(ctx context.Context, uid string) (types.Profile, error)
	List(ctx context.Context) ([]types.Profile, error)
	ListByUserUIDs(ctx context.Context, uids []string) ([]types.Profile, error)
	Create(ctx context.Context, profile types.Profile) (types.Profile, error)
	Update(ctx context.Context, profile types.Profile) (types.Profile, error)
	UpsertByUserUID(ctx context.Context, profile types.Profile) (types.Profile, error)
}

// ProfileService encapsulates profile use-cases.
type ProfileService struct {
	repo ProfileRepository
}

func NewProfileService(repo ProfileRepository) *ProfileService {
	return &ProfileService{repo: repo}
}

func (s *ProfileService) Get(ctx context.Context, id int64) (types.Profile, error) {
	return s.repo.Get(ctx, id)
}

func (s *ProfileService) GetByUserUID(ctx context.Context, uid string) (types.Profile, error) {
	return s.repo.GetByUserUID(ctx, uid)
}

func (s *ProfileService) List(ctx context.Context) ([]types.Profile, error) {
	return s.repo.List(ctx)
}

func (s *ProfileService) Create(ctx context.Context, profile types.Profile) (types.Profile, error) {
	return s.repo.Create(ctx, profile)
}

func (s *ProfileService) Update(ctx context.Context, profile types.Profile) (types.Profile, error) {
	return s.repo.Update(ctx, profile)
}
