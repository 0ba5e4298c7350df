// Package mongodb implements the repository interfaces on MongoDB, the store
// the mobile backend originally ran on. Collections are "users" and
// "activities"; documents use camelCase field names and ObjectID keys.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store owns the client. Activities and Users share its database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects, pings and makes sure the indexes exist.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connecting: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb: pinging: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb: creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Activities() *ActivityStore {
	return &ActivityStore{collection: s.db.Collection("activities")}
}

func (s *Store) Users() *UserStore {
	return &UserStore{collection: s.db.Collection("users")}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection("activities").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("activities: %w", err)
	}

	// Sparse so accounts without an email (or without GitHub) do not collide.
	_, err = s.db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "githubId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("users: %w", err)
	}

	return nil
}

// parseID converts a hex id. Malformed ids can never match a document, so
// callers treat !ok as "not found".
func parseID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}
