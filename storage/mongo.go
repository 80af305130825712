package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Remote and Drafts with two MongoDB collections.
// Each blob is one document keyed by name; a conditional write is an
// UpdateOne filtered on the expected version, creation an InsertOne that
// fails on the duplicate _id.
type MongoStore struct {
	blobs  *mongo.Collection
	drafts *mongo.Collection
}

type mongoBlob struct {
	Name    string `bson:"_id"`
	Content []byte `bson:"content"`
	Version int64  `bson:"version"`
}

type mongoDraft struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

// NewMongoStore uses "<prefix>blobs" and "<prefix>drafts" inside db
func NewMongoStore(db *mongo.Database, prefix string) *MongoStore {
	return &MongoStore{
		blobs:  db.Collection(prefix + "blobs"),
		drafts: db.Collection(prefix + "drafts"),
	}
}

// ReadBlob implements Remote.ReadBlob
func (m *MongoStore) ReadBlob(ctx context.Context, name string) (Blob, error) {
	var b mongoBlob
	err := m.blobs.FindOne(ctx, bson.M{"_id": name}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Blob{}, nil
		}
		return Blob{}, fmt.Errorf("mongo read %s: %w", name, err)
	}
	return Blob{Content: b.Content, Version: strconv.FormatInt(b.Version, 10)}, nil
}

// WriteBlob implements Remote.WriteBlob
func (m *MongoStore) WriteBlob(ctx context.Context, name string, content []byte, expectedVersion string) (string, error) {
	if expectedVersion == "" {
		_, err := m.blobs.InsertOne(ctx, mongoBlob{Name: name, Content: content, Version: 1})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return "", fmt.Errorf("blob %s already exists: %w", name, ErrVersionConflict)
			}
			return "", fmt.Errorf("mongo write %s: %w", name, err)
		}
		return "1", nil
	}

	expected, err := strconv.ParseInt(expectedVersion, 10, 64)
	if err != nil {
		return "", fmt.Errorf("blob %s: malformed version %q: %w", name, expectedVersion, ErrVersionConflict)
	}
	next := expected + 1
	res, err := m.blobs.UpdateOne(ctx,
		bson.M{"_id": name, "version": expected},
		bson.M{"$set": bson.M{"content": content, "version": next}},
	)
	if err != nil {
		return "", fmt.Errorf("mongo write %s: %w", name, err)
	}
	if res.MatchedCount == 0 {
		return "", fmt.Errorf("blob %s not at version %q: %w", name, expectedVersion, ErrVersionConflict)
	}
	return strconv.FormatInt(next, 10), nil
}

// Get implements Drafts.Get
func (m *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	var d mongoDraft
	err := m.drafts.FindOne(ctx, bson.M{"_id": key}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo get %s: %w", key, err)
	}
	return d.Value, nil
}

// Set implements Drafts.Set
func (m *MongoStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := m.drafts.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo set %s: %w", key, err)
	}
	return nil
}
