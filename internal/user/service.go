package user

import (
	"context"

	"github.com/abduss/filebroker/internal/policy"
	"github.com/google/uuid"
)

type quotaStore interface {
	Create(ctx context.Context, uid uuid.UUID, totalSpace int64) (User, error)
	Get(ctx context.Context, uid uuid.UUID) (User, error)
	Update(ctx context.Context, uid uuid.UUID, patch Patch) (User, error)
	Delete(ctx context.Context, uid uuid.UUID) (User, error)
}

// FileIndex lists the file IDs owned by a user.
type FileIndex interface {
	ListFileIDsByUser(ctx context.Context, uid uuid.UUID) ([]string, error)
}

type policySource interface {
	Snapshot() policy.Policy
}

// Service manages user quota records.
type Service struct {
	repo   quotaStore
	files  FileIndex
	policy policySource
}

// NewService constructs a user service.
func NewService(repo quotaStore, files FileIndex, policy policySource) *Service {
	return &Service{repo: repo, files: files, policy: policy}
}

// Register creates a quota record with the server-assigned default quota.
func (s *Service) Register(ctx context.Context, uid uuid.UUID) (User, error) {
	defaultQuota := s.policy.Snapshot().DefaultQuota
	return s.repo.Create(ctx, uid, defaultQuota)
}

// Get returns the user's quota record.
func (s *Service) Get(ctx context.Context, uid uuid.UUID) (User, error) {
	return s.repo.Get(ctx, uid)
}

// Update applies a partial quota update.
func (s *Service) Update(ctx context.Context, uid uuid.UUID, patch Patch) (User, error) {
	return s.repo.Update(ctx, uid, patch)
}

// Delete removes the quota record.
func (s *Service) Delete(ctx context.Context, uid uuid.UUID) (User, error) {
	return s.repo.Delete(ctx, uid)
}

// Files lists the IDs of files owned by the user, newest first.
func (s *Service) Files(ctx context.Context, uid uuid.UUID) ([]string, error) {
	return s.files.ListFileIDsByUser(ctx, uid)
}
