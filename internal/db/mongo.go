package db

import (
	"context"
	"time"

	"junks-backend/internal/docstore"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collections struct {
	Services     *mongo.Collection
	Testimonials *mongo.Collection
	Bookings     *mongo.Collection
	Messages     *mongo.Collection
	Settings     *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}

	return client, client.Database(dbName), nil
}

func CollectionsFor(db *mongo.Database) *Collections {
	return &Collections{
		Services:     db.Collection(docstore.CollectionServices),
		Testimonials: db.Collection(docstore.CollectionTestimonials),
		Bookings:     db.Collection(docstore.CollectionBookings),
		Messages:     db.Collection(docstore.CollectionMessages),
		Settings:     db.Collection(docstore.CollectionSettings),
	}
}

// EnsureIndexes creates the indexes backing the ordered list queries.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cols := CollectionsFor(db)

	if _, err := cols.Services.Indexes().CreateOne(indexTimeout, mongo.IndexModel{
		Keys: bson.D{{Key: "title", Value: 1}},
	}); err != nil {
		return err
	}

	if _, err := cols.Testimonials.Indexes().CreateOne(indexTimeout, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
	}); err != nil {
		return err
	}

	if _, err := cols.Bookings.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}},
	}); err != nil {
		return err
	}

	if _, err := cols.Messages.Indexes().CreateOne(indexTimeout, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	}); err != nil {
		return err
	}

	return nil
}
