package provider

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// newObjectID mints the provider-side object key. Hyphens are stripped so
// the key never looks like a path segment to picky S3 front-ends.
func newObjectID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
