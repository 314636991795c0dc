package instance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abduss/filebroker/internal/provider"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

// Repository provides access to the local_config and secrets tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds an instance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetLocalConfig fetches the configuration row for one server.
func (r *Repository) GetLocalConfig(ctx context.Context, serverID string) (LocalConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT server_id, provider, server_name, server_url FROM local_config WHERE server_id = $1;`

	var cfg LocalConfig
	err := r.pool.QueryRow(ctx, query, serverID).Scan(&cfg.ServerID, &cfg.Provider, &cfg.ServerName, &cfg.ServerURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LocalConfig{}, ErrInstanceNotFound
		}
		return LocalConfig{}, fmt.Errorf("get local config: %w", err)
	}
	return cfg, nil
}

// UpsertLocalConfig inserts or patches the configuration row for one
// server. Nil patch fields keep their stored value; a fresh row starts on
// the gdrive backend.
func (r *Repository) UpsertLocalConfig(ctx context.Context, serverID string, patch LocalConfigPatch) (LocalConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO local_config (server_id, provider, server_name, server_url)
VALUES ($1, COALESCE($2, 'gdrive'), COALESCE($3, ''), COALESCE($4, ''))
ON CONFLICT (server_id) DO UPDATE SET
    provider    = COALESCE($2, local_config.provider),
    server_name = COALESCE($3, local_config.server_name),
    server_url  = COALESCE($4, local_config.server_url)
RETURNING server_id, provider, server_name, server_url;`

	var cfg LocalConfig
	err := r.pool.QueryRow(ctx, query, serverID, patch.Provider, patch.ServerName, patch.ServerURL).
		Scan(&cfg.ServerID, &cfg.Provider, &cfg.ServerName, &cfg.ServerURL)
	if err != nil {
		return LocalConfig{}, fmt.Errorf("upsert local config: %w", err)
	}
	return cfg, nil
}

// ListInstanceIDs returns the server ids of every registered instance.
func (r *Repository) ListInstanceIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT server_id FROM local_config ORDER BY server_id;`)
	if err != nil {
		return nil, fmt.Errorf("list instance ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan instance id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list instance ids: %w", err)
	}
	return ids, nil
}

type driveSecretsRow struct {
	FolderID          string `json:"folderId"`
	GoogleCredentials string `json:"googleCredentials"`
}

type s3SecretsRow struct {
	Endpoint        string `json:"endpoint"`
	Region          string `json:"region"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	BucketName      string `json:"bucketName"`
}

// GetSecrets fetches the shared single-row secrets record.
func (r *Repository) GetSecrets(ctx context.Context) (Secrets, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT vk_secret, gdrive_secrets, s3_secrets FROM secrets LIMIT 1;`

	var (
		secrets  Secrets
		rawDrive []byte
		rawS3    []byte
	)
	err := r.pool.QueryRow(ctx, query).Scan(&secrets.VKSecret, &rawDrive, &rawS3)
	if err != nil {
		return Secrets{}, fmt.Errorf("get secrets: %w", err)
	}

	if len(rawDrive) > 0 {
		var row driveSecretsRow
		if err := json.Unmarshal(rawDrive, &row); err != nil {
			return Secrets{}, fmt.Errorf("decode gdrive secrets: %w", err)
		}
		secrets.Drive = &provider.DriveCredentials{
			CredentialsJSON: row.GoogleCredentials,
			FolderID:        row.FolderID,
		}
	}
	if len(rawS3) > 0 {
		var row s3SecretsRow
		if err := json.Unmarshal(rawS3, &row); err != nil {
			return Secrets{}, fmt.Errorf("decode s3 secrets: %w", err)
		}
		secrets.S3 = &provider.S3Credentials{
			Endpoint:        row.Endpoint,
			AccessKeyID:     row.AccessKeyID,
			SecretAccessKey: row.SecretAccessKey,
			Bucket:          row.BucketName,
			Region:          row.Region,
			UseSSL:          true,
		}
	}
	return secrets, nil
}
