package models

import "time"

// MLModel is a registered classification model. Rows are created and
// mutated only by the artifact synchronizer.
type MLModel struct {
	ID          string
	Name        string
	StoragePath string
	// IsExists is the last-known presence of the artifact in object
	// storage, as of the synchronizer's most recent run.
	IsExists  bool
	CreatedOn time.Time
	UpdatedOn time.Time
	DeletedOn *time.Time
}
