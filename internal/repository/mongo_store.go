package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// slotTTL is how long an untouched cart survives in Mongo.
const slotTTL = 90 * 24 * time.Hour

type slotDocument struct {
	Slot      string    `bson:"_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("cart_slots"),
	}
}

func (m *MongoStore) Load(ctx context.Context, slot string) ([]byte, error) {
	var doc slotDocument

	err := m.collection.FindOne(ctx, bson.M{"_id": slot}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to get cart slot: %w", err)
	}

	return []byte(doc.Payload), nil
}

func (m *MongoStore) Save(ctx context.Context, slot string, data []byte) error {
	update := bson.M{
		"$set": bson.M{
			"payload":    string(data),
			"updated_at": time.Now(),
		},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": slot}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart slot: %w", err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, slot string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": slot}); err != nil {
		return fmt.Errorf("failed to delete cart slot: %w", err)
	}
	return nil
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(slotTTL.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
