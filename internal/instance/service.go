package instance

import (
	"context"
	"fmt"
	"sync"

	"github.com/abduss/filebroker/internal/policy"
	"github.com/abduss/filebroker/internal/provider"
	"go.uber.org/zap"
)

type configStore interface {
	GetLocalConfig(ctx context.Context, serverID string) (LocalConfig, error)
	UpsertLocalConfig(ctx context.Context, serverID string, patch LocalConfigPatch) (LocalConfig, error)
	ListInstanceIDs(ctx context.Context) ([]string, error)
	GetSecrets(ctx context.Context) (Secrets, error)
}

type policyLoader interface {
	Get(ctx context.Context) (policy.Policy, error)
}

type providerHandle interface {
	Current() provider.Provider
	Replace(p provider.Provider)
}

// Factory builds a storage provider from its backend name and secrets.
type Factory func(name string, creds provider.Credentials) (provider.Provider, error)

// Service manages this server's configuration row, the shared secrets
// record and the live provider handle. A reconfigure refreshes all three.
type Service struct {
	repo      configStore
	policyDB  policyLoader
	policies  *policy.Store
	providers providerHandle
	factory   Factory
	serverID  string
	log       *zap.Logger

	mu      sync.RWMutex
	current LocalConfig
	secrets Secrets
}

// NewService constructs the instance service. factory is typically
// provider.New.
func NewService(repo configStore, policyDB policyLoader, policies *policy.Store, providers providerHandle, factory Factory, serverID string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		policyDB:  policyDB,
		policies:  policies,
		providers: providers,
		factory:   factory,
		serverID:  serverID,
		log:       log,
	}
}

// Bootstrap loads secrets, policy and this server's configuration row,
// registering the row on first start, and installs the active provider.
// Must complete before the server accepts traffic.
func (s *Service) Bootstrap(ctx context.Context) error {
	secrets, err := s.repo.GetSecrets(ctx)
	if err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}

	cfg, err := s.repo.UpsertLocalConfig(ctx, s.serverID, LocalConfigPatch{})
	if err != nil {
		return fmt.Errorf("register instance: %w", err)
	}

	pol, err := s.policyDB.Get(ctx)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	s.policies.Replace(pol)

	p, err := s.factory(cfg.Provider, secrets.Credentials())
	if err != nil {
		return fmt.Errorf("build provider %q: %w", cfg.Provider, err)
	}
	s.providers.Replace(p)

	s.mu.Lock()
	s.current = cfg
	s.secrets = secrets
	s.mu.Unlock()

	s.log.Info("instance bootstrapped",
		zap.String("server_id", cfg.ServerID),
		zap.String("provider", cfg.Provider))
	return nil
}

// List returns the server ids of every registered instance.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.repo.ListInstanceIDs(ctx)
}

// Get returns the configuration row for any instance in the fleet.
func (s *Service) Get(ctx context.Context, serverID string) (LocalConfig, error) {
	return s.repo.GetLocalConfig(ctx, serverID)
}

// Reconfigure patches this server's configuration row, refreshes policy
// and secrets from the database, and swaps the provider handle when the
// backend changed. Only the server's own id is accepted; other instances
// apply their own updates.
func (s *Service) Reconfigure(ctx context.Context, serverID string, patch LocalConfigPatch) (LocalConfig, error) {
	if serverID != s.serverID {
		return LocalConfig{}, ErrServerIDMismatch
	}

	s.mu.RLock()
	oldProvider := s.current.Provider
	s.mu.RUnlock()

	cfg, err := s.repo.UpsertLocalConfig(ctx, serverID, patch)
	if err != nil {
		return LocalConfig{}, err
	}

	pol, err := s.policyDB.Get(ctx)
	if err != nil {
		return LocalConfig{}, fmt.Errorf("refresh policy: %w", err)
	}
	s.policies.Replace(pol)

	secrets, err := s.repo.GetSecrets(ctx)
	if err != nil {
		return LocalConfig{}, fmt.Errorf("refresh secrets: %w", err)
	}

	if cfg.Provider != oldProvider {
		p, err := s.factory(cfg.Provider, secrets.Credentials())
		if err != nil {
			return LocalConfig{}, fmt.Errorf("build provider %q: %w", cfg.Provider, err)
		}
		s.providers.Replace(p)
		s.log.Info("provider swapped",
			zap.String("from", oldProvider),
			zap.String("to", cfg.Provider))
	}

	s.mu.Lock()
	s.current = cfg
	s.secrets = secrets
	s.mu.Unlock()

	return cfg, nil
}

// Snapshot returns this server's configuration as of the last refresh.
func (s *Service) Snapshot() LocalConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// VKSecret returns the shared admin secret as of the last refresh. Both
// the sweep endpoint and the instance middleware validate against it.
func (s *Service) VKSecret() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secrets.VKSecret
}
