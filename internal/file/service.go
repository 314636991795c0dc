package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abduss/filebroker/internal/metrics"
	"github.com/abduss/filebroker/internal/policy"
	"github.com/abduss/filebroker/internal/provider"
	"github.com/abduss/filebroker/internal/token"
	"github.com/abduss/filebroker/internal/user"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type metadataStore interface {
	Create(ctx context.Context, meta Metadata) (Metadata, error)
	Get(ctx context.Context, fileID string) (Metadata, error)
	Update(ctx context.Context, fileID string, patch MetadataPatch) (Metadata, error)
	Delete(ctx context.Context, fileID string) (Metadata, error)
	IncrementDownload(ctx context.Context, fileID string) (Metadata, error)
	ListExpired(ctx context.Context) ([]Metadata, error)
}

type quotaStore interface {
	Get(ctx context.Context, uid uuid.UUID) (user.User, error)
	ReserveSpace(ctx context.Context, uid uuid.UUID, size int64) (user.User, error)
	ReleaseSpace(ctx context.Context, uid uuid.UUID, size int64) error
}

type tokenIssuer interface {
	Issue(ctx context.Context, owner *uuid.UUID, ttl time.Duration) (string, error)
	Consume(ctx context.Context, tok string) (*uuid.UUID, error)
}

type providerSource interface {
	Current() provider.Provider
}

type policySource interface {
	Snapshot() policy.Policy
}

// Service orchestrates the upload pipeline, downloads, deletes and the
// expiry sweep.
type Service struct {
	repo      metadataStore
	quotas    quotaStore
	tokens    tokenIssuer
	providers providerSource
	policies  policySource
	serverID  string
	log       *zap.Logger
}

// NewService constructs the file service.
func NewService(repo metadataStore, quotas quotaStore, tokens tokenIssuer, providers providerSource, policies policySource, serverID string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		quotas:    quotas,
		tokens:    tokens,
		providers: providers,
		policies:  policies,
		serverID:  serverID,
		log:       log,
	}
}

// IssueToken creates a single-use upload token. When an owner is supplied
// the user must exist.
func (s *Service) IssueToken(ctx context.Context, owner *uuid.UUID) (string, time.Duration, error) {
	if owner != nil {
		if _, err := s.quotas.Get(ctx, *owner); err != nil {
			return "", 0, err
		}
	}

	tok, err := s.tokens.Issue(ctx, owner, token.DefaultTTL)
	if err != nil {
		return "", 0, err
	}
	return tok, token.DefaultTTL, nil
}

// Authorize consumes the upload token and returns the owner it was issued
// for, nil for anonymous tokens. Callers must invoke this before parsing
// the request body.
func (s *Service) Authorize(ctx context.Context, tok string) (*uuid.UUID, error) {
	if tok == "" {
		return nil, ErrUnauthorized
	}
	return s.tokens.Consume(ctx, tok)
}

// Upload runs the ordered upload contract for an already authorized request:
// policy validation against one snapshot, token/body identity agreement,
// atomic quota reservation, provider upload, metadata commit. Failures after
// the reservation release it; a metadata failure also deletes the uploaded
// object so nothing is orphaned at the provider.
func (s *Service) Upload(ctx context.Context, tokenOwner *uuid.UUID, req UploadRequest) (Metadata, error) {
	// Content may legitimately be empty; a zero-byte upload is stored as a
	// zero-byte object. Only absent parts are malformed, and the handler
	// already rejects those.
	if req.Filename == "" || req.MimeType == "" || req.Kind == "" {
		return Metadata{}, fmt.Errorf("%w: missing required field", ErrMalformedRequest)
	}
	if req.Kind != KindTemporary && req.Kind != KindPermanent {
		return Metadata{}, fmt.Errorf("%w: type must be %q or %q", ErrMalformedRequest, KindTemporary, KindPermanent)
	}
	if req.Kind == KindPermanent && req.UserID == nil {
		return Metadata{}, fmt.Errorf("%w: missing user_id for permanent file", ErrMalformedRequest)
	}

	pol := s.policies.Snapshot()
	if !pol.Allows(req.MimeType) {
		return Metadata{}, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, req.MimeType)
	}
	if req.Size() > pol.MaxSize {
		return Metadata{}, ErrPayloadTooLarge
	}

	if err := checkIdentity(tokenOwner, req.UserID); err != nil {
		return Metadata{}, err
	}

	reserved := false
	if req.Kind == KindPermanent {
		if _, err := s.quotas.ReserveSpace(ctx, *req.UserID, req.Size()); err != nil {
			return Metadata{}, err
		}
		reserved = true
	}

	prov := s.providers.Current()
	stored, err := prov.Upload(ctx, provider.Object{
		Content:  req.Content,
		Filename: req.Filename,
		MimeType: req.MimeType,
	})
	if err != nil {
		if reserved {
			s.releaseQuota(ctx, *req.UserID, req.Size())
		}
		metrics.UploadsTotal.WithLabelValues(req.Kind, "provider_error").Inc()
		return Metadata{}, err
	}

	now := time.Now().UTC()
	meta := Metadata{
		FileID:        stored.FileID,
		MimeType:      stored.MimeType,
		Size:          stored.Size,
		Description:   req.Description,
		FileName:      req.Filename,
		ServerID:      s.serverID,
		UploadedAt:    now,
		DownloadCount: 0,
		LastAccess:    now,
	}
	if req.Kind == KindPermanent {
		meta.UserID = req.UserID
	} else {
		deleteAt := now.Add(pol.TempFileLife)
		meta.DeleteAt = &deleteAt
	}

	created, err := s.repo.Create(ctx, meta)
	if err != nil {
		// Compensate so the object is not orphaned at the provider.
		if delErr := prov.Delete(ctx, stored.FileID); delErr != nil {
			s.log.Error("orphaned provider object after metadata failure",
				zap.String("file_id", stored.FileID),
				zap.Error(delErr),
			)
		}
		if reserved {
			s.releaseQuota(ctx, *req.UserID, req.Size())
		}
		metrics.UploadsTotal.WithLabelValues(req.Kind, "metadata_error").Inc()
		return Metadata{}, err
	}

	metrics.UploadsTotal.WithLabelValues(req.Kind, "success").Inc()
	return created, nil
}

func checkIdentity(tokenOwner, declared *uuid.UUID) error {
	switch {
	case tokenOwner == nil && declared == nil:
		return nil
	case tokenOwner != nil && declared != nil && *tokenOwner == *declared:
		return nil
	default:
		return fmt.Errorf("%w: token identity mismatch", ErrUnauthorized)
	}
}

func (s *Service) releaseQuota(ctx context.Context, uid uuid.UUID, size int64) {
	if err := s.quotas.ReleaseSpace(ctx, uid, size); err != nil {
		s.log.Error("release reserved quota",
			zap.String("user_id", uid.String()),
			zap.Int64("size", size),
			zap.Error(err),
		)
	}
}

// Download fetches metadata and content, bumping the download counters.
func (s *Service) Download(ctx context.Context, fileID string) (Metadata, []byte, error) {
	meta, err := s.repo.IncrementDownload(ctx, fileID)
	if err != nil {
		return Metadata{}, nil, err
	}

	data, err := s.providers.Current().Download(ctx, fileID)
	if err != nil {
		return Metadata{}, nil, err
	}

	metrics.DownloadsTotal.Inc()
	return meta, data, nil
}

// GetMetadata returns the stored metadata record.
func (s *Service) GetMetadata(ctx context.Context, fileID string) (Metadata, error) {
	return s.repo.Get(ctx, fileID)
}

// UpdateMetadata applies a partial update. Ownerless files are immutable
// once created.
func (s *Service) UpdateMetadata(ctx context.Context, fileID string, patch MetadataPatch) (Metadata, error) {
	current, err := s.repo.Get(ctx, fileID)
	if err != nil {
		return Metadata{}, err
	}
	if current.UserID == nil {
		return Metadata{}, ErrImmutableMetadata
	}
	return s.repo.Update(ctx, fileID, patch)
}

// Delete removes the file from the provider and the metadata store, then
// rolls back the owner's quota if the file was permanent.
func (s *Service) Delete(ctx context.Context, fileID string) error {
	meta, err := s.repo.Get(ctx, fileID)
	if err != nil {
		return err
	}

	if err := s.providers.Current().Delete(ctx, fileID); err != nil && !errors.Is(err, provider.ErrObjectNotFound) {
		return err
	}

	if _, err := s.repo.Delete(ctx, fileID); err != nil {
		return err
	}

	if meta.UserID != nil {
		s.releaseQuota(ctx, *meta.UserID, meta.Size)
	}
	return nil
}

// Sweep reclaims expired temporary files. Every file is processed
// independently; sub-step failures are accumulated as advisory errors and
// never abort the pass. DeletedCount reports files that made it through
// provider delete and metadata delete.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	expired, err := s.repo.ListExpired(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Errors: []string{}}
	for _, meta := range expired {
		err := s.providers.Current().Delete(ctx, meta.FileID)
		if err != nil && !errors.Is(err, provider.ErrObjectNotFound) {
			result.Errors = append(result.Errors, fmt.Sprintf("delete file %s from provider: %v", meta.FileID, err))
			metrics.SweepErrorsTotal.Inc()
			continue
		}

		if _, err := s.repo.Delete(ctx, meta.FileID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete metadata for file %s: %v", meta.FileID, err))
			metrics.SweepErrorsTotal.Inc()
			continue
		}

		if meta.UserID != nil {
			if err := s.quotas.ReleaseSpace(ctx, *meta.UserID, meta.Size); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("update user quota for file %s: %v", meta.FileID, err))
				metrics.SweepErrorsTotal.Inc()
			}
		}

		result.DeletedCount++
		metrics.SweptFilesTotal.Inc()
	}

	return result, nil
}
