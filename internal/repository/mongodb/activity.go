package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/aurashift/internal/apperror"
	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/repository"
)

var _ repository.ActivityRepository = (*ActivityStore)(nil)

type ActivityStore struct {
	collection *mongo.Collection
}

type activityDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"userId"`
	Type      string             `bson:"type"`
	Points    int                `bson:"points"`
	Metadata  model.Metadata     `bson:"metadata,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d activityDoc) toModel() model.Activity {
	return model.Activity{
		ID:        d.ID.Hex(),
		UserID:    d.UserID.Hex(),
		Type:      model.ActivityType(d.Type),
		Points:    d.Points,
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func (s *ActivityStore) Create(ctx context.Context, activity *model.Activity) error {
	userID, ok := parseID(activity.UserID)
	if !ok {
		return apperror.NotFound("user", activity.UserID)
	}

	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}
	// BSON dates carry millisecond precision.
	activity.CreatedAt = activity.CreatedAt.UTC().Truncate(time.Millisecond)
	activity.UpdatedAt = activity.CreatedAt

	doc := activityDoc{
		UserID:    userID,
		Type:      string(activity.Type),
		Points:    activity.Points,
		Metadata:  activity.Metadata,
		CreatedAt: activity.CreatedAt,
		UpdatedAt: activity.UpdatedAt,
	}

	result, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("mongodb: inserting activity: %w", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("mongodb: unexpected inserted id type %T", result.InsertedID)
	}
	activity.ID = oid.Hex()

	return nil
}

func (s *ActivityStore) GetByID(ctx context.Context, userID, id string) (*model.Activity, error) {
	oid, ok1 := parseID(id)
	uid, ok2 := parseID(userID)
	if !ok1 || !ok2 {
		return nil, apperror.NotFound("activity", id)
	}

	var doc activityDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": oid, "userId": uid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("activity", id)
		}
		return nil, fmt.Errorf("mongodb: getting activity %s: %w", id, err)
	}

	a := doc.toModel()
	return &a, nil
}

func (s *ActivityStore) Find(ctx context.Context, q repository.ActivityQuery) ([]model.Activity, error) {
	filter, ok := activityFilter(q)
	if !ok {
		return []model.Activity{}, nil
	}

	dir := -1
	if q.Ascending {
		dir = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: dir}, {Key: "_id", Value: dir}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: finding activities: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []activityDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb: decoding activities: %w", err)
	}

	activities := make([]model.Activity, 0, len(docs))
	for _, d := range docs {
		activities = append(activities, d.toModel())
	}
	return activities, nil
}

func (s *ActivityStore) Count(ctx context.Context, q repository.ActivityQuery) (int, error) {
	filter, ok := activityFilter(q)
	if !ok {
		return 0, nil
	}

	n, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongodb: counting activities: %w", err)
	}
	return int(n), nil
}

func (s *ActivityStore) Update(ctx context.Context, activity *model.Activity) error {
	oid, ok1 := parseID(activity.ID)
	uid, ok2 := parseID(activity.UserID)
	if !ok1 || !ok2 {
		return apperror.NotFound("activity", activity.ID)
	}

	activity.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	set := bson.M{
		"type":      string(activity.Type),
		"points":    activity.Points,
		"updatedAt": activity.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if len(activity.Metadata) > 0 {
		set["metadata"] = activity.Metadata
	} else {
		update["$unset"] = bson.M{"metadata": ""}
	}

	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": oid, "userId": uid}, update)
	if err != nil {
		return fmt.Errorf("mongodb: updating activity %s: %w", activity.ID, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("activity", activity.ID)
	}
	return nil
}

func (s *ActivityStore) Delete(ctx context.Context, userID, id string) error {
	oid, ok1 := parseID(id)
	uid, ok2 := parseID(userID)
	if !ok1 || !ok2 {
		return apperror.NotFound("activity", id)
	}

	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": oid, "userId": uid})
	if err != nil {
		return fmt.Errorf("mongodb: deleting activity %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return apperror.NotFound("activity", id)
	}
	return nil
}

// activityFilter translates a query into a filter document. ok is false when
// the user id is malformed and nothing can match.
func activityFilter(q repository.ActivityQuery) (bson.M, bool) {
	uid, ok := parseID(q.UserID)
	if !ok {
		return nil, false
	}

	filter := bson.M{"userId": uid}
	if q.Type != "" {
		filter["type"] = string(q.Type)
	}

	created := bson.M{}
	if !q.From.IsZero() {
		created["$gte"] = q.From
	}
	if !q.To.IsZero() {
		created["$lte"] = q.To
	}
	if len(created) > 0 {
		filter["createdAt"] = created
	}

	return filter, true
}
