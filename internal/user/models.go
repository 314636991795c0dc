package user

import "github.com/google/uuid"

// User is the per-user quota record. used_space and file_count move in
// lock-step with permanent file metadata.
type User struct {
	UID        uuid.UUID `json:"uid"`
	FileCount  int64     `json:"file_count"`
	TotalSpace int64     `json:"total_space"`
	UsedSpace  int64     `json:"used_space"`
}

// Patch carries a partial quota update; nil fields are left untouched.
type Patch struct {
	FileCount  *int64 `json:"file_count"`
	TotalSpace *int64 `json:"total_space"`
	UsedSpace  *int64 `json:"used_space"`
}
