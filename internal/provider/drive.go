package provider

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	driveAPIBase       = "https://www.googleapis.com/drive/v3"
	driveUploadAPIBase = "https://www.googleapis.com/upload/drive/v3"
	driveScope         = "https://www.googleapis.com/auth/drive"
	driveCallTimeout   = 30 * time.Second
	driveTokenLifetime = time.Hour
)

// DriveCredentials configure the Google Drive backend.
type DriveCredentials struct {
	// CredentialsJSON is a Google service-account key file.
	CredentialsJSON string
	// FolderID is the Drive folder all objects are created under.
	FolderID string
}

type driveServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// DriveProvider stores objects in a Google Drive folder through the Drive
// v3 REST API, authenticating with a service-account JWT assertion.
type DriveProvider struct {
	client     *http.Client
	folderID   string
	account    driveServiceAccount
	key        *rsa.PrivateKey
	apiBase    string
	uploadBase string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewDriveProvider parses the service-account key and builds the provider.
func NewDriveProvider(creds DriveCredentials) (*DriveProvider, error) {
	var account driveServiceAccount
	if err := json.Unmarshal([]byte(creds.CredentialsJSON), &account); err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" || account.TokenURI == "" {
		return nil, fmt.Errorf("drive credentials missing required fields")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse drive private key: %w", err)
	}

	return &DriveProvider{
		client:     &http.Client{Timeout: driveCallTimeout},
		folderID:   creds.FolderID,
		account:    account,
		key:        key,
		apiBase:    driveAPIBase,
		uploadBase: driveUploadAPIBase,
	}, nil
}

// Name identifies the backend kind.
func (p *DriveProvider) Name() string { return "gdrive" }

func (p *DriveProvider) signAssertion(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   p.account.ClientEmail,
		"scope": driveScope,
		"aud":   p.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(driveTokenLifetime).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.key)
}

// token returns a cached access token or performs a fresh exchange. The
// mutex only guards the cached fields; the HTTP round trip runs outside
// it, so concurrent refreshes may race and the last write wins.
func (p *DriveProvider) token(ctx context.Context) (string, error) {
	now := time.Now()

	p.mu.Lock()
	cached, expiry := p.accessToken, p.tokenExpiry
	p.mu.Unlock()

	if cached != "" && now.Add(time.Minute).Before(expiry) {
		return cached, nil
	}

	assertion, err := p.signAssertion(now)
	if err != nil {
		return "", fmt.Errorf("%w: sign assertion: %v", ErrUnavailable, err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.account.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token exchange status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.AccessToken == "" {
		return "", fmt.Errorf("%w: decode token response: %v", ErrUnavailable, err)
	}

	p.mu.Lock()
	p.accessToken = body.AccessToken
	p.tokenExpiry = now.Add(time.Duration(body.ExpiresIn) * time.Second)
	p.mu.Unlock()

	return body.AccessToken, nil
}

// invalidateToken drops the cached access token after an auth failure so the
// next call performs a fresh exchange.
func (p *DriveProvider) invalidateToken() {
	p.mu.Lock()
	p.accessToken = ""
	p.mu.Unlock()
}

type driveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     string `json:"size"`
}

func (f driveFile) sizeBytes() int64 {
	n, _ := strconv.ParseInt(f.Size, 10, 64)
	return n
}

// Upload creates the file with a multipart/related request carrying the
// Drive metadata part and the media part.
func (p *DriveProvider) Upload(ctx context.Context, obj Object) (Stored, error) {
	tok, err := p.token(ctx)
	if err != nil {
		return Stored{}, err
	}

	meta := map[string]any{
		"name":     obj.Filename,
		"mimeType": obj.MimeType,
	}
	if p.folderID != "" {
		meta["parents"] = []string{p.folderID}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return Stored{}, fmt.Errorf("%w: marshal metadata: %v", ErrUnavailable, err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := writer.CreatePart(metaHeader)
	if err != nil {
		return Stored{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	if _, err := part.Write(metaJSON); err != nil {
		return Stored{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", obj.MimeType)
	part, err = writer.CreatePart(mediaHeader)
	if err != nil {
		return Stored{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	if _, err := part.Write(obj.Content); err != nil {
		return Stored{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	if err := writer.Close(); err != nil {
		return Stored{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}

	endpoint := fmt.Sprintf("%s/files?uploadType=multipart&fields=id,name,mimeType,size", p.uploadBase)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return Stored{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := p.client.Do(req)
	if err != nil {
		return Stored{}, fmt.Errorf("%w: upload: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := p.classifyStatus(resp.StatusCode, "upload"); err != nil {
		return Stored{}, err
	}

	var created driveFile
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return Stored{}, fmt.Errorf("%w: decode upload response: %v", ErrUnavailable, err)
	}

	size := created.sizeBytes()
	if size == 0 {
		size = obj.Size()
	}

	return Stored{
		FileID:   created.ID,
		Size:     size,
		MimeType: obj.MimeType,
		Filename: obj.Filename,
		Provider: p.Name(),
	}, nil
}

// Download fetches the raw file contents via alt=media.
func (p *DriveProvider) Download(ctx context.Context, fileID string) ([]byte, error) {
	tok, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/files/%s?alt=media", p.apiBase, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := p.classifyStatus(resp.StatusCode, "download"); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Delete removes the file from Drive.
func (p *DriveProvider) Delete(ctx context.Context, fileID string) error {
	tok, err := p.token(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/files/%s", p.apiBase, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: delete: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	return p.classifyStatus(resp.StatusCode, "delete")
}

// Stat reports file metadata without fetching the body.
func (p *DriveProvider) Stat(ctx context.Context, fileID string) (Stored, error) {
	tok, err := p.token(ctx)
	if err != nil {
		return Stored{}, err
	}

	endpoint := fmt.Sprintf("%s/files/%s?fields=id,name,mimeType,size", p.apiBase, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Stored{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := p.client.Do(req)
	if err != nil {
		return Stored{}, fmt.Errorf("%w: stat: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := p.classifyStatus(resp.StatusCode, "stat"); err != nil {
		return Stored{}, err
	}

	var f driveFile
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return Stored{}, fmt.Errorf("%w: decode stat response: %v", ErrUnavailable, err)
	}

	return Stored{
		FileID:   f.ID,
		Size:     f.sizeBytes(),
		MimeType: f.MimeType,
		Filename: f.Name,
		Provider: p.Name(),
	}, nil
}

func (p *DriveProvider) classifyStatus(status int, op string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: drive %s", ErrObjectNotFound, op)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		p.invalidateToken()
		return fmt.Errorf("%w: drive %s status %d", ErrUnavailable, op, status)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: drive %s status %d", ErrRejected, op, status)
	default:
		return fmt.Errorf("%w: drive %s status %d", ErrUnavailable, op, status)
	}
}
