package provider

import "fmt"

// Backend names accepted in instance configuration.
const (
	BackendS3    = "s3"
	BackendDrive = "gdrive"
)

// Credentials bundles the secrets for every backend kind; only the entry
// matching the selected backend needs to be present.
type Credentials struct {
	S3    *S3Credentials
	Drive *DriveCredentials
}

// New constructs the provider selected by name from the supplied secrets.
func New(name string, creds Credentials) (Provider, error) {
	switch name {
	case BackendS3:
		if creds.S3 == nil {
			return nil, fmt.Errorf("s3 credentials not found")
		}
		return NewS3Provider(*creds.S3)
	case BackendDrive:
		if creds.Drive == nil {
			return nil, fmt.Errorf("gdrive credentials not found")
		}
		return NewDriveProvider(*creds.Drive)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", name)
	}
}
