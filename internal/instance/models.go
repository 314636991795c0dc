package instance

import "github.com/abduss/filebroker/internal/provider"

// LocalConfig is the per-server configuration row. Every instance in the
// fleet owns exactly one, keyed by its server id.
type LocalConfig struct {
	ServerID   string `json:"server_id"`
	Provider   string `json:"provider"`
	ServerName string `json:"server_name"`
	ServerURL  string `json:"server_url"`
}

// LocalConfigPatch carries the mutable subset of LocalConfig. Nil fields
// are left untouched.
type LocalConfigPatch struct {
	Provider   *string `json:"provider"`
	ServerName *string `json:"server_name"`
	ServerURL  *string `json:"server_url"`
}

// Secrets is the shared single-row secrets record. Credential blocks are
// optional; only the active backend needs its block populated.
type Secrets struct {
	VKSecret string
	Drive    *provider.DriveCredentials
	S3       *provider.S3Credentials
}

// Credentials converts the record into the provider factory's input.
func (s Secrets) Credentials() provider.Credentials {
	return provider.Credentials{S3: s.S3, Drive: s.Drive}
}
