package instance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abduss/filebroker/internal/policy"
	"github.com/abduss/filebroker/internal/provider"
	"github.com/gin-gonic/gin"
)

type stubProvider struct {
	provider.Provider
	name string
}

func (s stubProvider) Name() string { return s.name }

type fakeConfigStore struct {
	configs map[string]LocalConfig
	secrets Secrets
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{configs: make(map[string]LocalConfig)}
}

func (f *fakeConfigStore) GetLocalConfig(ctx context.Context, serverID string) (LocalConfig, error) {
	cfg, ok := f.configs[serverID]
	if !ok {
		return LocalConfig{}, ErrInstanceNotFound
	}
	return cfg, nil
}

func (f *fakeConfigStore) UpsertLocalConfig(ctx context.Context, serverID string, patch LocalConfigPatch) (LocalConfig, error) {
	cfg, ok := f.configs[serverID]
	if !ok {
		cfg = LocalConfig{ServerID: serverID, Provider: provider.BackendDrive}
	}
	if patch.Provider != nil {
		cfg.Provider = *patch.Provider
	}
	if patch.ServerName != nil {
		cfg.ServerName = *patch.ServerName
	}
	if patch.ServerURL != nil {
		cfg.ServerURL = *patch.ServerURL
	}
	f.configs[serverID] = cfg
	return cfg, nil
}

func (f *fakeConfigStore) ListInstanceIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.configs))
	for id := range f.configs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeConfigStore) GetSecrets(ctx context.Context) (Secrets, error) {
	return f.secrets, nil
}

type fakePolicyLoader struct {
	policy policy.Policy
}

func (f *fakePolicyLoader) Get(ctx context.Context) (policy.Policy, error) {
	return f.policy, nil
}

type instanceFixture struct {
	service      *Service
	store        *fakeConfigStore
	policies     *policy.Store
	handle       *provider.Handle
	factoryCalls int
}

func newInstanceFixture(serverID string) *instanceFixture {
	fx := &instanceFixture{
		store:    newFakeConfigStore(),
		policies: policy.NewStore(policy.Policy{}),
		handle:   provider.NewHandle(nil),
	}
	fx.store.secrets = Secrets{
		VKSecret: "admin-secret",
		Drive:    &provider.DriveCredentials{CredentialsJSON: "{}", FolderID: "root"},
		S3:       &provider.S3Credentials{Endpoint: "localhost:9000", Bucket: "files"},
	}

	factory := func(name string, creds provider.Credentials) (provider.Provider, error) {
		fx.factoryCalls++
		return stubProvider{name: name}, nil
	}
	loader := &fakePolicyLoader{policy: policy.Policy{MaxSize: 512, TempFileLife: time.Hour}}

	fx.service = NewService(fx.store, loader, fx.policies, fx.handle, factory, serverID, nil)
	return fx
}

func TestBootstrapInstallsProviderAndPolicy(t *testing.T) {
	fx := newInstanceFixture("srv-1")

	if err := fx.service.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	if got := fx.handle.Current().Name(); got != provider.BackendDrive {
		t.Fatalf("expected default provider %q, got %q", provider.BackendDrive, got)
	}
	if got := fx.policies.Snapshot().MaxSize; got != 512 {
		t.Fatalf("policy not refreshed, max size %d", got)
	}
	if fx.service.VKSecret() != "admin-secret" {
		t.Fatalf("secrets not loaded")
	}
	if _, ok := fx.store.configs["srv-1"]; !ok {
		t.Fatalf("instance row not registered")
	}
}

func TestReconfigureRejectsForeignServerID(t *testing.T) {
	fx := newInstanceFixture("srv-1")
	if err := fx.service.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	_, err := fx.service.Reconfigure(context.Background(), "srv-2", LocalConfigPatch{})
	if !errors.Is(err, ErrServerIDMismatch) {
		t.Fatalf("expected ErrServerIDMismatch, got %v", err)
	}
}

func TestReconfigureSwapsProviderOnlyOnChange(t *testing.T) {
	fx := newInstanceFixture("srv-1")
	if err := fx.service.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	callsAfterBoot := fx.factoryCalls

	s3 := provider.BackendS3
	cfg, err := fx.service.Reconfigure(context.Background(), "srv-1", LocalConfigPatch{Provider: &s3})
	if err != nil {
		t.Fatalf("Reconfigure returned error: %v", err)
	}
	if cfg.Provider != provider.BackendS3 {
		t.Fatalf("expected provider %q, got %q", provider.BackendS3, cfg.Provider)
	}
	if got := fx.handle.Current().Name(); got != provider.BackendS3 {
		t.Fatalf("handle not swapped, current %q", got)
	}
	if fx.factoryCalls != callsAfterBoot+1 {
		t.Fatalf("expected one factory call, got %d", fx.factoryCalls-callsAfterBoot)
	}

	// Same backend again: no rebuild.
	name := "renamed"
	if _, err := fx.service.Reconfigure(context.Background(), "srv-1", LocalConfigPatch{ServerName: &name}); err != nil {
		t.Fatalf("Reconfigure returned error: %v", err)
	}
	if fx.factoryCalls != callsAfterBoot+1 {
		t.Fatalf("provider rebuilt without a backend change")
	}
}

func TestReconfigureRefreshesSecrets(t *testing.T) {
	fx := newInstanceFixture("srv-1")
	if err := fx.service.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	fx.store.secrets.VKSecret = "rotated"
	if _, err := fx.service.Reconfigure(context.Background(), "srv-1", LocalConfigPatch{}); err != nil {
		t.Fatalf("Reconfigure returned error: %v", err)
	}
	if fx.service.VKSecret() != "rotated" {
		t.Fatalf("secrets not refreshed after reconfigure")
	}
}

func TestSecretMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/admin", SecretMiddleware(func() string { return "expected" }), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name   string
		secret string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong secret", "guess", http.StatusUnauthorized},
		{"valid secret", "expected", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.secret != "" {
				req.Header.Set(AdminSecretHeader, tc.secret)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
