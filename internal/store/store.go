// Package store provides the shared persisted document store and its
// change-broadcast primitive. Every piece of shared truth in the system
// (roster, message log, appointment log, read markers, mood log) lives
// under one logical key here; domain stores in internal/data layer their
// collections on top of it.
package store

import "context"

// Logical document keys. Each collection is a single JSON document under
// its own key; mutations go through Update so concurrent writers from
// independent contexts cannot lose each other's changes.
const (
	KeyRoster       = "unimind:roster"
	KeyMessageLog   = "unimind:message-log"
	KeyAppointments = "unimind:appointment-log"
	KeyReadMarkers  = "unimind:read-markers"
	KeyMoodLog      = "unimind:mood-log"
)

// Broadcast topics. A writer notifies the topic for the collection it
// touched; observers subscribe to the topics they render from.
const (
	TopicRoster       = "roster"
	TopicMessages     = "messages"
	TopicReadMarkers  = "read-markers"
	TopicAppointments = "appointments"
	TopicMoods        = "moods"
)

// KV is the key-addressed document contract. Get returns (nil, nil) for an
// absent key: first-run absence is an empty collection, not an error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error

	// Update applies fn to the current value of key as one atomic
	// read-modify-write. fn receives nil when the key is absent; an error
	// from fn aborts the update and is returned unchanged.
	Update(ctx context.Context, key string, fn func(cur []byte) ([]byte, error)) error
}

// Notifier is the change-broadcast contract. Notify is fire-and-continue:
// the writer never waits for observers. Subscribe returns a channel that
// receives the topic name for each broadcast; the returned cancel func
// releases the subscription.
type Notifier interface {
	Notify(ctx context.Context, topic string) error
	Subscribe(ctx context.Context, topics ...string) (<-chan string, func(), error)
}

// Store composes a KV backend with a Notifier. The two may be served by the
// same engine (Redis) or split (Mongo documents + in-process hub).
type Store struct {
	KV
	Notifier
}

// New returns a Store over the given backends.
func New(kv KV, n Notifier) *Store {
	return &Store{KV: kv, Notifier: n}
}
