package models

import "time"

// File describes one uploaded image. The raw bytes live in object storage
// under StoragePath ("<bucket>/<key>"); the row is immutable after creation
// except for soft delete.
type File struct {
	ID string
	// OriginalName is stored encrypted at rest.
	OriginalName string
	StoragePath  string
	ContentType  string
	UserID       string
	CreatedOn    time.Time
	UpdatedOn    time.Time
	DeletedOn    *time.Time
}
