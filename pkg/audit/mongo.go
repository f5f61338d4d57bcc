package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "entry_audit"

type MongoSink struct {
	collection *mongo.Collection
	Timeout    time.Duration
}

func NewMongoSink(db *mongo.Database, timeout time.Duration) *MongoSink {
	return &MongoSink{
		collection: db.Collection(Collection),
		Timeout:    timeout,
	}
}

func (s *MongoSink) Record(ctx context.Context, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("audit insert: %w", err)
	}
	return nil
}

// Recent returns the latest events of an operator, newest first.
func (s *MongoSink) Recent(ctx context.Context, operatorID int64, limit int64) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit)
	cursor, err := s.collection.Find(ctx, bson.M{"operatorId": operatorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("audit find: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]Event, 0)
	for cursor.Next(ctx) {
		var ev Event
		if err := cursor.Decode(&ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, cursor.Err()
}
