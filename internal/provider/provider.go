// Package provider abstracts the remote object-storage backend behind a
// small capability interface. Exactly one provider is active per instance;
// the active one is held by a Handle so it can be swapped at runtime.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrObjectNotFound signals the object does not exist at the provider.
	ErrObjectNotFound = errors.New("object not found")
	// ErrUnavailable marks transient failures (network, auth refresh); the
	// caller may safely retry the whole operation.
	ErrUnavailable = errors.New("storage provider unavailable")
	// ErrRejected marks permanent failures reported by the provider, such as
	// provider-side quota or validation errors.
	ErrRejected = errors.New("storage provider rejected request")
)

// Object is the payload handed to a provider for upload.
type Object struct {
	Content  []byte
	Filename string
	MimeType string
}

// Size returns the content length in bytes.
func (o Object) Size() int64 {
	return int64(len(o.Content))
}

// Stored describes an object as known to the provider.
type Stored struct {
	FileID   string
	Size     int64
	MimeType string
	Filename string
	Provider string
}

// Provider is the capability set every storage backend implements.
type Provider interface {
	Upload(ctx context.Context, obj Object) (Stored, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	Delete(ctx context.Context, fileID string) error
	Stat(ctx context.Context, fileID string) (Stored, error)
	Name() string
}
