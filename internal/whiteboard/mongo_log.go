package whiteboard

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"studyroom-backend/internal/model"
)

// MongoLog document-backed log. A TTL index expires records after the window.
type MongoLog struct {
	coll   *mongo.Collection
	window time.Duration
}

func NewMongoLog(coll *mongo.Collection, window time.Duration) *MongoLog {
	return &MongoLog{coll: coll, window: window}
}

// EnsureIndexes creates the replay index and the expiry index
func (l *MongoLog) EnsureIndexes(ctx context.Context) error {
	_, err := l.coll.Indexes().CreateMany(ctx, indexModels(l.window))
	if err != nil {
		return fmt.Errorf("create stroke indexes: %w", err)
	}
	return nil
}

func indexModels(window time.Duration) []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(window.Seconds())),
		},
	}
}

func (l *MongoLog) Append(ctx context.Context, s *model.Stroke) error {
	_, err := l.coll.InsertOne(ctx, s)
	return err
}

func (l *MongoLog) Recent(ctx context.Context, roomID string, since time.Time, limit int) ([]model.Stroke, error) {
	filter := bson.M{"room_id": roomID, "created_at": bson.M{"$gt": since}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := l.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	strokes := make([]model.Stroke, 0)
	if err := cur.All(ctx, &strokes); err != nil {
		return nil, err
	}
	reverse(strokes)
	return strokes, nil
}

func (l *MongoLog) DeleteRoomBefore(ctx context.Context, roomID string, before time.Time) (int64, error) {
	res, err := l.coll.DeleteMany(ctx, bson.M{"room_id": roomID, "created_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (l *MongoLog) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
