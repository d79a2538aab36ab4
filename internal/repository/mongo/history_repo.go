// Package mongo stores the action history in a MongoDB collection.
package mongo

import (
	"context"
	"fmt"
	"time"

	"smart-coop/internal/models"
	"smart-coop/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const historyCollection = "histories"

type HistoryRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewHistoryRepository connects to uri and uses the histories collection
// of dbName.
func NewHistoryRepository(ctx context.Context, uri, dbName string) (*HistoryRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	collection := client.Database(dbName).Collection(historyCollection)
	_, err = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create history indexes: %w", err)
	}

	return &HistoryRepository{client: client, collection: collection}, nil
}

func (r *HistoryRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *HistoryRepository) Append(ctx context.Context, entry *models.History) error {
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *HistoryRepository) List(ctx context.Context, f repository.HistoryFilter) ([]models.History, int64, error) {
	filter := bson.M{}
	if f.UserID != nil {
		filter["userId"] = *f.UserID
	}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	created := bson.M{}
	if !f.Start.IsZero() {
		created["$gte"] = f.Start.UTC()
	}
	if !f.End.IsZero() {
		created["$lt"] = f.End.UTC()
	}
	if len(created) > 0 {
		filter["createdAt"] = created
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit)).SetSkip(int64(f.Offset))
	}
	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer cur.Close(ctx)

	entries := make([]models.History, 0)
	if err := cur.All(ctx, &entries); err != nil {
		return nil, 0, fmt.Errorf("decode history: %w", err)
	}
	return entries, total, nil
}
