package provider

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func testDriveCredentials(t *testing.T, tokenURI string) DriveCredentials {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	raw, err := json.Marshal(map[string]string{
		"client_email": "svc@project.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
		"token_uri":    tokenURI,
	})
	if err != nil {
		t.Fatalf("marshal credentials: %v", err)
	}

	return DriveCredentials{CredentialsJSON: string(raw), FolderID: "folder-1"}
}

func newTokenServer(t *testing.T, exchanges *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
			t.Errorf("unexpected grant_type %q", got)
		}
		if r.PostForm.Get("assertion") == "" {
			t.Errorf("missing assertion")
		}
		atomic.AddInt64(exchanges, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"expires_in":   3600,
		})
	}))
}

func TestNewDriveProviderValidation(t *testing.T) {
	if _, err := NewDriveProvider(DriveCredentials{CredentialsJSON: "not json"}); err == nil {
		t.Fatalf("expected error for malformed credentials")
	}

	raw, _ := json.Marshal(map[string]string{"client_email": "svc@example.com"})
	if _, err := NewDriveProvider(DriveCredentials{CredentialsJSON: string(raw)}); err == nil {
		t.Fatalf("expected error for incomplete credentials")
	}
}

func TestDriveTokenCaching(t *testing.T) {
	var exchanges int64
	tokenSrv := newTokenServer(t, &exchanges)
	defer tokenSrv.Close()

	p, err := NewDriveProvider(testDriveCredentials(t, tokenSrv.URL))
	if err != nil {
		t.Fatalf("NewDriveProvider returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		tok, err := p.token(context.Background())
		if err != nil {
			t.Fatalf("token returned error: %v", err)
		}
		if tok != "test-access-token" {
			t.Fatalf("unexpected token %q", tok)
		}
	}
	if atomic.LoadInt64(&exchanges) != 1 {
		t.Fatalf("expected one exchange for cached token, got %d", atomic.LoadInt64(&exchanges))
	}

	// An auth failure drops the cache and forces a fresh exchange.
	p.invalidateToken()
	if _, err := p.token(context.Background()); err != nil {
		t.Fatalf("token returned error: %v", err)
	}
	if atomic.LoadInt64(&exchanges) != 2 {
		t.Fatalf("expected a second exchange after invalidation, got %d", atomic.LoadInt64(&exchanges))
	}
}

func TestDriveTokenConcurrentFetch(t *testing.T) {
	var exchanges int64
	tokenSrv := newTokenServer(t, &exchanges)
	defer tokenSrv.Close()

	p, err := NewDriveProvider(testDriveCredentials(t, tokenSrv.URL))
	if err != nil {
		t.Fatalf("NewDriveProvider returned error: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := p.token(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if tok != "test-access-token" {
				errs <- fmt.Errorf("unexpected token %q", tok)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent token fetch: %v", err)
	}

	// Cold-cache racers may each exchange; afterwards the cache serves all.
	warm := atomic.LoadInt64(&exchanges)
	if _, err := p.token(context.Background()); err != nil {
		t.Fatalf("token returned error: %v", err)
	}
	if got := atomic.LoadInt64(&exchanges); got != warm {
		t.Fatalf("warm cache still exchanged, %d -> %d", warm, got)
	}
}

func TestDriveUploadRoundTrip(t *testing.T) {
	var exchanges int64
	tokenSrv := newTokenServer(t, &exchanges)
	defer tokenSrv.Close()

	driveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
			t.Errorf("unexpected authorization %q", got)
		}
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/related" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), params["boundary"]) {
			t.Errorf("body does not use declared boundary")
		}
		if !strings.Contains(string(body), `"parents":["folder-1"]`) {
			t.Errorf("metadata part missing parent folder")
		}
		if !strings.Contains(string(body), "drive content") {
			t.Errorf("media part missing file content")
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id":       "drive-file-1",
			"name":     "report.txt",
			"mimeType": "text/plain",
			"size":     "13",
		})
	}))
	defer driveSrv.Close()

	p, err := NewDriveProvider(testDriveCredentials(t, tokenSrv.URL))
	if err != nil {
		t.Fatalf("NewDriveProvider returned error: %v", err)
	}
	p.uploadBase = driveSrv.URL

	stored, err := p.Upload(context.Background(), Object{
		Content:  []byte("drive content"),
		Filename: "report.txt",
		MimeType: "text/plain",
	})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if stored.FileID != "drive-file-1" || stored.Size != 13 || stored.Provider != "gdrive" {
		t.Fatalf("unexpected stored result %+v", stored)
	}
}

func TestDriveDownloadAndDelete(t *testing.T) {
	var exchanges int64
	tokenSrv := newTokenServer(t, &exchanges)
	defer tokenSrv.Close()

	driveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/files/known"):
			w.Write([]byte("file body"))
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/files/known"):
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer driveSrv.Close()

	p, err := NewDriveProvider(testDriveCredentials(t, tokenSrv.URL))
	if err != nil {
		t.Fatalf("NewDriveProvider returned error: %v", err)
	}
	p.apiBase = driveSrv.URL

	data, err := p.Download(context.Background(), "known")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if string(data) != "file body" {
		t.Fatalf("unexpected body %q", data)
	}

	if _, err := p.Download(context.Background(), "missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}

	if err := p.Delete(context.Background(), "known"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
}

func TestDriveStatusClassification(t *testing.T) {
	var exchanges int64
	tokenSrv := newTokenServer(t, &exchanges)
	defer tokenSrv.Close()

	p, err := NewDriveProvider(testDriveCredentials(t, tokenSrv.URL))
	if err != nil {
		t.Fatalf("NewDriveProvider returned error: %v", err)
	}

	cases := []struct {
		status int
		want   error
	}{
		{http.StatusOK, nil},
		{http.StatusNotFound, ErrObjectNotFound},
		{http.StatusUnauthorized, ErrUnavailable},
		{http.StatusForbidden, ErrUnavailable},
		{http.StatusUnprocessableEntity, ErrRejected},
		{http.StatusInternalServerError, ErrUnavailable},
	}

	for _, tc := range cases {
		err := p.classifyStatus(tc.status, "test")
		if tc.want == nil {
			if err != nil {
				t.Fatalf("status %d: expected nil, got %v", tc.status, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}
