package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const metadataColumns = `file_id, mime_type, size, user_id, description, file_name, server_id, uploaded_at, download_count, last_access, delete_at`

// Repository provides access to file metadata storage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new file repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMetadata(row pgx.Row) (Metadata, error) {
	var m Metadata
	err := row.Scan(
		&m.FileID,
		&m.MimeType,
		&m.Size,
		&m.UserID,
		&m.Description,
		&m.FileName,
		&m.ServerID,
		&m.UploadedAt,
		&m.DownloadCount,
		&m.LastAccess,
		&m.DeleteAt,
	)
	return m, err
}

// Create inserts metadata for a newly uploaded file.
func (r *Repository) Create(ctx context.Context, meta Metadata) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO metadata (` + metadataColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + metadataColumns + `;`

	row := r.pool.QueryRow(ctx, query,
		meta.FileID,
		meta.MimeType,
		meta.Size,
		meta.UserID,
		meta.Description,
		meta.FileName,
		meta.ServerID,
		meta.UploadedAt,
		meta.DownloadCount,
		meta.LastAccess,
		meta.DeleteAt,
	)

	stored, err := scanMetadata(row)
	if err != nil {
		return Metadata{}, fmt.Errorf("create file metadata: %w", err)
	}
	return stored, nil
}

// Get fetches metadata for a single file.
func (r *Repository) Get(ctx context.Context, fileID string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + metadataColumns + ` FROM metadata WHERE file_id = $1;`

	meta, err := scanMetadata(r.pool.QueryRow(ctx, query, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metadata{}, ErrFileNotFound
		}
		return Metadata{}, fmt.Errorf("get file metadata: %w", err)
	}
	return meta, nil
}

// Update applies a partial metadata update and returns the stored record.
func (r *Repository) Update(ctx context.Context, fileID string, patch MetadataPatch) (Metadata, error) {
	if patch.FileName == nil && patch.Description == nil && patch.DeleteAt == nil {
		return r.Get(ctx, fileID)
	}

	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE metadata
SET file_name   = COALESCE($2, file_name),
    description = COALESCE($3, description),
    delete_at   = COALESCE($4, delete_at)
WHERE file_id = $1
RETURNING ` + metadataColumns + `;`

	meta, err := scanMetadata(r.pool.QueryRow(ctx, query, fileID, patch.FileName, patch.Description, patch.DeleteAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metadata{}, ErrFileNotFound
		}
		return Metadata{}, fmt.Errorf("update file metadata: %w", err)
	}
	return meta, nil
}

// Delete removes metadata and returns the deleted record.
func (r *Repository) Delete(ctx context.Context, fileID string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `DELETE FROM metadata WHERE file_id = $1 RETURNING ` + metadataColumns + `;`

	meta, err := scanMetadata(r.pool.QueryRow(ctx, query, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metadata{}, ErrFileNotFound
		}
		return Metadata{}, fmt.Errorf("delete file metadata: %w", err)
	}
	return meta, nil
}

// IncrementDownload bumps the download counter and last access timestamp,
// returning the updated record.
func (r *Repository) IncrementDownload(ctx context.Context, fileID string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE metadata
SET download_count = download_count + 1,
    last_access = NOW()
WHERE file_id = $1
RETURNING ` + metadataColumns + `;`

	meta, err := scanMetadata(r.pool.QueryRow(ctx, query, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metadata{}, ErrFileNotFound
		}
		return Metadata{}, fmt.Errorf("increment download count: %w", err)
	}
	return meta, nil
}

// ListExpired returns every record whose delete_at has passed.
func (r *Repository) ListExpired(ctx context.Context) ([]Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + metadataColumns + ` FROM metadata WHERE delete_at IS NOT NULL AND delete_at <= NOW();`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list expired files: %w", err)
	}
	defer rows.Close()

	var expired []Metadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired metadata: %w", err)
		}
		expired = append(expired, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired metadata: %w", err)
	}
	return expired, nil
}

// ListFileIDsByUser returns the IDs of files owned by a user, newest first.
func (r *Repository) ListFileIDsByUser(ctx context.Context, uid uuid.UUID) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT file_id FROM metadata WHERE user_id = $1 ORDER BY uploaded_at DESC;`

	rows, err := r.pool.Query(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("list files by user: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file ids: %w", err)
	}
	return ids, nil
}
