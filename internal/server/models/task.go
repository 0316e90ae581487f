// Package models defines the rows persisted in the relational store.
// All entities are identified by a random UUID; timestamps are UTC.
package models

import "time"

// TaskStatus tracks an image from upload to a terminal outcome. It only
// advances UPLOAD -> {SUCCESS | ERROR} and never regresses.
type TaskStatus string

const (
	TaskStatusUpload  TaskStatus = "UPLOAD"
	TaskStatusPredict TaskStatus = "PREDICT"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusError   TaskStatus = "ERROR"
)

// Task is the durable record of one classification unit of work.
type Task struct {
	ID     string
	FileID string
	UserID string
	// PredictID is set exactly when Status is SUCCESS.
	PredictID *string
	Status    TaskStatus
	// Message carries the human-readable error detail for ERROR tasks.
	Message   string
	CreatedOn time.Time
	UpdatedOn time.Time
	DeletedOn *time.Time
}
