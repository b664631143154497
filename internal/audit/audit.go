// Package audit keeps a history of status transitions made by approval flows.
package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionStatus is the MongoDB collection holding status history.
const CollectionStatus = "history_status"

// Transition is one recorded status change.
type Transition struct {
	Entity     string    `bson:"entity" json:"entity"`
	EntityID   string    `bson:"entity_id" json:"entityId"`
	From       string    `bson:"from" json:"from"`
	To         string    `bson:"to" json:"to"`
	ActorID    string    `bson:"actor_id" json:"actorId"`
	Reason     string    `bson:"reason,omitempty" json:"reason,omitempty"`
	OccurredAt time.Time `bson:"occurred_at" json:"occurredAt"`
}

// Recorder stores transitions.
type Recorder interface {
	Record(ctx context.Context, t Transition) error
}

// MongoRecorder writes transitions into a MongoDB collection.
type MongoRecorder struct {
	collection *mongo.Collection
}

// NewMongoRecorder uses the status collection of db.
func NewMongoRecorder(db *mongo.Database) *MongoRecorder {
	return &MongoRecorder{collection: db.Collection(CollectionStatus)}
}

// ConnectMongo dials uri, pings it and returns the named database.
func ConnectMongo(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, client.Database(dbName), nil
}

// Record inserts t.
func (r *MongoRecorder) Record(ctx context.Context, t Transition) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("failed to insert history status to Mongo: %w", err)
	}
	return nil
}

// LogRecorder writes transitions to a logger. Used when MongoDB is not configured.
type LogRecorder struct {
	Logger *log.Logger
}

// Record logs t.
func (r LogRecorder) Record(_ context.Context, t Transition) error {
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("%s %s: %s -> %s by %s", t.Entity, t.EntityID, t.From, t.To, t.ActorID)
	return nil
}

// RecordBestEffort records t and logs a failure instead of returning it.
func RecordBestEffort(ctx context.Context, r Recorder, logger *log.Logger, t Transition) {
	if r == nil {
		return
	}
	if err := r.Record(ctx, t); err != nil {
		if logger == nil {
			logger = log.Default()
		}
		logger.Printf("Warning: failed to record %s %s transition: %v", t.Entity, t.EntityID, err)
	}
}
