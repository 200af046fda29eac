// Package mongo stores cart snapshots in a MongoDB collection, one
// document per storage key.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oppa-kitchen/storefront/internal/cart"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the default collection name.
const Collection = "cart_snapshots"

type document struct {
	Key       string    `bson:"_id"`
	Data      string    `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Repository implements cart.Repository on MongoDB.
type Repository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func New(coll *mongo.Collection) *Repository {
	return &Repository{coll: coll, now: time.Now}
}

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the updatedAt index used to find stale carts.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "updatedAt", Value: 1}},
		Options: options.Index().SetName("updatedAt_index"),
	})
	if err != nil {
		return fmt.Errorf("create updatedAt index: %w", err)
	}
	return nil
}

func (r *Repository) Load(ctx context.Context, key string) ([]byte, error) {
	var doc document
	err := r.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, cart.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", key, err)
	}
	return []byte(doc.Data), nil
}

func (r *Repository) Save(ctx context.Context, key string, data []byte) error {
	doc := document{Key: key, Data: string(data), UpdatedAt: r.now().UTC()}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}
