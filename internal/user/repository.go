package user

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

// Repository provides access to per-user quota records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a user repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a user with the given total quota and zero usage.
func (r *Repository) Create(ctx context.Context, uid uuid.UUID, totalSpace int64) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO users (uid, file_count, total_space, used_space)
VALUES ($1, 0, $2, 0)
RETURNING uid, file_count, total_space, used_space;`

	var u User
	err := r.pool.QueryRow(ctx, query, uid, totalSpace).Scan(&u.UID, &u.FileCount, &u.TotalSpace, &u.UsedSpace)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Get fetches the quota record for a user.
func (r *Repository) Get(ctx context.Context, uid uuid.UUID) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT uid, file_count, total_space, used_space FROM users WHERE uid = $1;`

	var u User
	err := r.pool.QueryRow(ctx, query, uid).Scan(&u.UID, &u.FileCount, &u.TotalSpace, &u.UsedSpace)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Update applies a partial quota update and returns the stored record.
func (r *Repository) Update(ctx context.Context, uid uuid.UUID, patch Patch) (User, error) {
	if patch.FileCount == nil && patch.TotalSpace == nil && patch.UsedSpace == nil {
		return r.Get(ctx, uid)
	}

	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE users
SET file_count  = COALESCE($2, file_count),
    total_space = COALESCE($3, total_space),
    used_space  = COALESCE($4, used_space)
WHERE uid = $1
RETURNING uid, file_count, total_space, used_space;`

	var u User
	err := r.pool.QueryRow(ctx, query, uid, patch.FileCount, patch.TotalSpace, patch.UsedSpace).
		Scan(&u.UID, &u.FileCount, &u.TotalSpace, &u.UsedSpace)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// Delete removes the quota record and returns it.
func (r *Repository) Delete(ctx context.Context, uid uuid.UUID) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `DELETE FROM users WHERE uid = $1 RETURNING uid, file_count, total_space, used_space;`

	var u User
	err := r.pool.QueryRow(ctx, query, uid).Scan(&u.UID, &u.FileCount, &u.TotalSpace, &u.UsedSpace)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("delete user: %w", err)
	}
	return u, nil
}

// ReserveSpace atomically accounts one new file of the given size against
// the user's quota. The conditional update makes two racing reservations
// serialize at the store, so used_space can never overrun total_space.
func (r *Repository) ReserveSpace(ctx context.Context, uid uuid.UUID, size int64) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE users
SET file_count = file_count + 1,
    used_space = used_space + $2
WHERE uid = $1 AND used_space + $2 <= total_space
RETURNING uid, file_count, total_space, used_space;`

	var u User
	err := r.pool.QueryRow(ctx, query, uid, size).Scan(&u.UID, &u.FileCount, &u.TotalSpace, &u.UsedSpace)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("reserve space: %w", err)
	}

	// The row either does not exist or the quota would overrun.
	if _, getErr := r.Get(ctx, uid); getErr != nil {
		return User{}, getErr
	}
	return User{}, ErrInsufficientStorage
}

// ReleaseSpace reverses one file's accounting with saturating subtraction.
func (r *Repository) ReleaseSpace(ctx context.Context, uid uuid.UUID, size int64) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE users
SET file_count = GREATEST(file_count - 1, 0),
    used_space = GREATEST(used_space - $2, 0)
WHERE uid = $1;`

	if _, err := r.pool.Exec(ctx, query, uid, size); err != nil {
		return fmt.Errorf("release space: %w", err)
	}
	return nil
}
