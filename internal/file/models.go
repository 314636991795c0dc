package file

import (
	"time"

	"github.com/google/uuid"
)

// Upload kinds accepted in the multipart "type" part.
const (
	KindTemporary = "temporal"
	KindPermanent = "permanent"
)

// Metadata is the durable record describing a brokered file. A file is
// either temporary (no owner, delete_at set) or permanent (owner set,
// delete_at empty); never both, never neither.
type Metadata struct {
	FileID        string     `json:"file_id"`
	MimeType      string     `json:"mime_type"`
	Size          int64      `json:"size"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	Description   *string    `json:"description,omitempty"`
	FileName      string     `json:"file_name"`
	ServerID      string     `json:"server_id"`
	UploadedAt    time.Time  `json:"uploaded_at"`
	DownloadCount int64      `json:"download_count"`
	LastAccess    time.Time  `json:"last_access"`
	DeleteAt      *time.Time `json:"delete_at,omitempty"`
}

// Temporary reports whether the file is subject to the expiry sweep.
func (m Metadata) Temporary() bool {
	return m.UserID == nil && m.DeleteAt != nil
}

// UploadRequest is the parsed multipart upload body.
type UploadRequest struct {
	Content     []byte
	Filename    string
	MimeType    string
	Kind        string
	UserID      *uuid.UUID
	Description *string
}

// Size returns the content length in bytes.
func (r UploadRequest) Size() int64 {
	return int64(len(r.Content))
}

// MetadataPatch carries a partial metadata update; nil fields are untouched.
type MetadataPatch struct {
	FileName    *string    `json:"file_name"`
	Description *string    `json:"description"`
	DeleteAt    *time.Time `json:"delete_at"`
}

// SweepResult reports the outcome of one expiry sweep. Errors are advisory;
// a file listed there may be left in a partially reclaimed state.
type SweepResult struct {
	DeletedCount int      `json:"deleted_count"`
	Errors       []string `json:"errors"`
}
