// Package kafkax contains the topic-addressed message dispatch layer: a
// registry mapping topics to handlers, a consumer that runs the receive
// loop against that registry, and a scoped producer.
package kafkax

import (
	"context"
	"fmt"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/segmentio/kafka-go"
)

// Handler processes one received record. Returning an error marks the
// record as failed; the consumer logs it and moves on.
type Handler func(ctx context.Context, msg kafka.Message) error

type registration struct {
	topic   string
	handler Handler
}

// Registry is the topic->handler routing table, built once at startup.
// It performs no I/O. The last registration for a topic wins; callers are
// expected to avoid collisions.
type Registry struct {
	prefix        string
	registrations []registration

	// lazy cache invalidated on every mutation
	byTopic map[string]Handler
}

// NewRegistry returns an empty registry. All topics registered on it (or
// merged into it) are prefixed with prefix.
func NewRegistry(prefix string) *Registry {
	return &Registry{prefix: prefix}
}

// Register binds handler to topic.
func (r *Registry) Register(topic string, handler Handler) {
	r.registrations = append(r.registrations, registration{topic: r.prefix + topic, handler: handler})
	r.byTopic = nil
}

// Include merges all of other's registrations into r, applying r's prefix
// on top of topics already prefixed by other.
func (r *Registry) Include(other *Registry) {
	for _, reg := range other.registrations {
		r.registrations = append(r.registrations, registration{topic: r.prefix + reg.topic, handler: reg.handler})
	}
	r.byTopic = nil
}

// Handler resolves the handler for topic.
func (r *Registry) Handler(topic string) (Handler, error) {
	h, ok := r.handlers()[topic]
	if !ok {
		return nil, fmt.Errorf("%w: no handler for topic %q", common.ErrorNotFound, topic)
	}
	return h, nil
}

// Topics returns every registered topic exactly once, in registration order.
// The consumer subscribes to this set.
func (r *Registry) Topics() []string {
	seen := make(map[string]struct{}, len(r.registrations))
	topics := make([]string, 0, len(r.registrations))
	for _, reg := range r.registrations {
		if _, ok := seen[reg.topic]; ok {
			continue
		}
		seen[reg.topic] = struct{}{}
		topics = append(topics, reg.topic)
	}
	return topics
}

func (r *Registry) handlers() map[string]Handler {
	if r.byTopic == nil {
		r.byTopic = make(map[string]Handler, len(r.registrations))
		for _, reg := range r.registrations {
			r.byTopic[reg.topic] = reg.handler
		}
	}
	return r.byTopic
}
