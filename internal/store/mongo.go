package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// casRetries bounds the optimistic version-counter loop in Update.
const casRetries = 16

// MongoKV is the alternate document backend for deployments already running
// MongoDB. Each logical key is one document in a "documents" collection:
//
//	{_id: <key>, value: <bytes>, version: <int64>}
//
// version is a per-document change counter; Update performs compare-and-swap
// on it so concurrent writers cannot silently overwrite each other. Mongo has
// no pub/sub, so pair MongoKV with a ChangeHub (or any other Notifier) when
// assembling the Store.
type MongoKV struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoDoc struct {
	Key     string `bson:"_id"`
	Value   []byte `bson:"value"`
	Version int64  `bson:"version"`
}

// NewMongoKV connects to MongoDB, pings it, and returns a KV over the
// "documents" collection of the "unimind" database.
func NewMongoKV(ctx context.Context, mongoURI string) (*MongoKV, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	// The driver connects lazily; ping is the actual reachability test.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	return &MongoKV{
		client: client,
		coll:   client.Database("unimind").Collection("documents"),
	}, nil
}

// Get reads a document's value. Absent keys return (nil, nil).
func (m *MongoKV) Get(ctx context.Context, key string) ([]byte, error) {
	var doc mongoDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return doc.Value, nil
}

// Set overwrites a document unconditionally, creating it if absent.
func (m *MongoKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value}, "$inc": bson.M{"version": 1}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Update applies fn under optimistic concurrency: read the document and its
// version, write back only if the version is unchanged, retry otherwise.
func (m *MongoKV) Update(ctx context.Context, key string, fn func(cur []byte) ([]byte, error)) error {
	for i := 0; i < casRetries; i++ {
		var doc mongoDoc
		err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
		absent := errors.Is(err, mongo.ErrNoDocuments)
		if err != nil && !absent {
			return fmt.Errorf("update %s: %w", key, err)
		}

		next, err := fn(doc.Value)
		if err != nil {
			return err
		}

		if absent {
			_, err = m.coll.InsertOne(ctx, mongoDoc{Key: key, Value: next, Version: 1})
			if mongo.IsDuplicateKeyError(err) {
				continue // someone created it first; re-read and retry
			}
			if err != nil {
				return fmt.Errorf("update %s: %w", key, err)
			}
			return nil
		}

		res, err := m.coll.UpdateOne(ctx,
			bson.M{"_id": key, "version": doc.Version},
			bson.M{"$set": bson.M{"value": next}, "$inc": bson.M{"version": 1}},
		)
		if err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
		// Version moved underneath us; retry against the fresh value.
	}
	return fmt.Errorf("update %s: too much contention", key)
}

// Close disconnects from MongoDB.
func (m *MongoKV) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
