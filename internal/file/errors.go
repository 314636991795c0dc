package file

import "errors"

var (
	// ErrFileNotFound signals that no metadata record exists for the file.
	ErrFileNotFound = errors.New("file not found")
	// ErrMalformedRequest covers structurally invalid upload bodies.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrUnauthorized covers token/identity mismatches on upload.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPayloadTooLarge signals the upload exceeds the policy maximum.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrUnsupportedMediaType signals a MIME type outside the allow-set.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrImmutableMetadata signals an update attempt on an ownerless file.
	ErrImmutableMetadata = errors.New("temporary file metadata is immutable")
)
