package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// sessionDocument is one session in the Mongo collection.
type sessionDocument struct {
	ID        string            `bson:"_id"`
	Values    map[string]string `bson:"values"`
	ExpiresAt *time.Time        `bson:"expiresAt,omitempty"`
}

// MongoStorage keeps each session as one document keyed by session id.
type MongoStorage struct {
	coll *mongo.Collection
	ttl  time.Duration
	now  func() time.Time
}

// NewMongoStorage creates a MongoDB session storage over coll.
func NewMongoStorage(coll *mongo.Collection, ttl time.Duration) *MongoStorage {
	return &MongoStorage{coll: coll, ttl: ttl, now: time.Now}
}

// Migrate creates the TTL index on expiresAt so Mongo reaps stale sessions.
func (s *MongoStorage) Migrate(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("session: mongo create ttl index: %w", err)
	}
	return nil
}

// Load returns the session values. Expired documents the reaper has not yet
// removed load as empty.
func (s *MongoStorage) Load(ctx context.Context, sid string) (map[string]string, error) {
	var doc sessionDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": sid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: mongo find %q: %w", sid, err)
	}
	if doc.ExpiresAt != nil && s.now().After(*doc.ExpiresAt) {
		return map[string]string{}, nil
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return doc.Values, nil
}

// Save upserts values and moves the expiry.
func (s *MongoStorage) Save(ctx context.Context, sid string, values map[string]string) error {
	set := bson.M{}
	for k, v := range values {
		set["values."+k] = v
	}
	if s.ttl > 0 {
		set["expiresAt"] = s.now().UTC().Add(s.ttl)
	}
	if len(set) == 0 {
		return nil
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": sid},
		bson.M{"$set": set},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("session: mongo upsert %q: %w", sid, err)
	}
	return nil
}

// Purge unsets the given keys. Purging every persisted key, as logout does,
// deletes the document, and so does any purge that leaves no values behind.
func (s *MongoStorage) Purge(ctx context.Context, sid string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if coversAllKeys(keys) {
		if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": sid}); err != nil {
			return fmt.Errorf("session: mongo delete %q: %w", sid, err)
		}
		return nil
	}

	unset := bson.M{}
	for _, k := range keys {
		unset["values."+k] = ""
	}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": sid}, bson.M{"$unset": unset}); err != nil {
		return fmt.Errorf("session: mongo unset %q: %w", sid, err)
	}
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": sid, "values": bson.M{}})
	if err != nil {
		return fmt.Errorf("session: mongo delete empty %q: %w", sid, err)
	}
	return nil
}

// HealthCheck pings the deployment.
func (s *MongoStorage) HealthCheck(ctx context.Context) error {
	if err := s.coll.Database().Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("session: mongo ping: %w", err)
	}
	return nil
}
