package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// channelPrefix namespaces broadcast channels so several deployments can
// share one Redis instance.
const channelPrefix = "unimind:changed:"

// updateRetries bounds the optimistic WATCH/MULTI loop in Update. A retry
// only happens when another context modified the same key mid-update, so
// contention at this scale burns through very few attempts.
const updateRetries = 16

// RedisStore backs both the document KV and the change broadcast with a
// single Redis connection: plain keys for documents, pub/sub for Notify.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis using a redis:// URL and verifies the
// connection before returning.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail fast if Redis is unreachable rather than on the first write.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client (used by tests).
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get reads a document. Absent keys return (nil, nil): callers treat
// absence as an empty collection.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

// Set overwrites a document unconditionally. Documents never expire; the
// domain stores do their own retention (message pruning, mood cap).
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Update runs fn inside a WATCH/MULTI transaction so the read and the write
// form one atomic step. If another writer lands on the same key between our
// read and EXEC, Redis aborts the transaction and we re-run fn against the
// fresh value.
func (s *RedisStore) Update(ctx context.Context, key string, fn func(cur []byte) ([]byte, error)) error {
	txn := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			cur = nil
		} else if err != nil {
			return err
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < updateRetries; i++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		// Lost the race; retry against the new value.
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}

// Notify publishes the topic on its broadcast channel. Subscribers in any
// process connected to the same Redis receive it; the writer does not wait.
func (s *RedisStore) Notify(ctx context.Context, topic string) error {
	if err := s.client.Publish(ctx, channelPrefix+topic, "1").Err(); err != nil {
		return fmt.Errorf("notify %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns a channel delivering the topic name for every broadcast
// on any of the given topics. The cancel func closes the subscription; the
// returned channel closes once the subscription drains.
func (s *RedisStore) Subscribe(ctx context.Context, topics ...string) (<-chan string, func(), error) {
	channels := make([]string, len(topics))
	for i, t := range topics {
		channels[i] = channelPrefix + t
	}

	sub := s.client.Subscribe(ctx, channels...)
	// Force the SUBSCRIBE to complete so callers never miss a broadcast
	// fired right after Subscribe returns.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			topic := msg.Channel[len(channelPrefix):]
			select {
			case out <- topic:
			default:
				// Observer is behind; it re-reads the whole document on
				// every wakeup anyway, so dropping a duplicate is safe.
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
