package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

// Repository loads the global policy from PostgreSQL. The policy lives in a
// single-row table maintained by the administrative surface.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a policy repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches the current global policy.
func (r *Repository) Get(ctx context.Context) (Policy, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT mime_types, max_size, chunk_size, temp_file_life, default_quota
FROM global_config
LIMIT 1;`

	var p Policy
	var tempLifeSeconds int64
	err := r.pool.QueryRow(ctx, query).Scan(
		&p.MimeTypes,
		&p.MaxSize,
		&p.ChunkSize,
		&tempLifeSeconds,
		&p.DefaultQuota,
	)
	if err != nil {
		return Policy{}, fmt.Errorf("get global policy: %w", err)
	}

	p.TempFileLife = time.Duration(tempLifeSeconds) * time.Second
	return p, nil
}
