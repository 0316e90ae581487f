// Package services holds the application's business logic: artifact
// synchronization, the upload/read side of the task pipeline, the
// consumer-side classify handler and account management. Services are
// constructed once in the application wiring and hold no request state.
package services

import "context"

// ObjectStore is the slice of the object-storage client the services use.
// Implemented by objstore.Client.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket, key string, body []byte) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// Head reports object existence; missing objects yield
	// common.ErrorNotFound, transport failures anything else.
	Head(ctx context.Context, bucket, key string) error
}

// Publisher is a scoped broker connection, opened per unit of work.
// Implemented by kafkax.Producer.
type Publisher interface {
	Start() error
	Stop() error
	Send(ctx context.Context, topic string, value []byte) error
}

// PublisherFactory builds a fresh Publisher for one unit of work.
type PublisherFactory func() Publisher

// classifyMessage is the wire body of a pipeline-start record.
type classifyMessage struct {
	TaskID  string `json:"task_id"`
	ModelID string `json:"model_id"`
}
