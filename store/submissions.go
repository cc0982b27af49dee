package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Jobsidney/FinanceFormFlows/models"
)

// ErrSubmissionNotFound signals an unknown submission id.
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionStore persists accepted submissions in the "submissions"
// collection. It implements submit.SubmissionStore and the read side of
// notify.SubmissionSource.
type SubmissionStore struct {
	col *mongo.Collection
}

func NewSubmissionStore(db *mongo.Database) *SubmissionStore {
	return &SubmissionStore{col: db.Collection("submissions")}
}

func (s *SubmissionStore) Persist(ctx context.Context, sub *models.Submission) error {
	if _, err := s.col.InsertOne(ctx, sub); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *SubmissionStore) Get(ctx context.Context, id string) (*models.Submission, error) {
	var sub models.Submission
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load submission %s: %w", id, err)
	}
	return &sub, nil
}

func (s *SubmissionStore) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_processed": true, "processed_at": at}})
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// ListByForm returns a form's submissions, newest first.
func (s *SubmissionStore) ListByForm(ctx context.Context, formID string) ([]models.Submission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{"form_id": formID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list submissions for %s: %w", formID, err)
	}
	defer cur.Close(ctx)

	subs := []models.Submission{}
	if err := cur.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	return subs, nil
}

// FindOrphaned returns submissions old enough to be past the enqueue
// window that have no delivery job at all.
func (s *SubmissionStore) FindOrphaned(ctx context.Context, olderThan time.Time, limit int) ([]models.Submission, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"submitted_at": bson.M{"$lte": olderThan}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "delivery_jobs",
			"localField":   "_id",
			"foreignField": "submission_id",
			"as":           "jobs",
		}}},
		{{Key: "$match", Value: bson.M{"jobs": bson.M{"$size": 0}}}},
		{{Key: "$limit", Value: int64(limit)}},
	}
	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("find orphaned submissions: %w", err)
	}
	defer cur.Close(ctx)

	subs := []models.Submission{}
	if err := cur.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("decode orphaned submissions: %w", err)
	}
	return subs, nil
}

// DeleteByForm removes all submissions for a deleted form (the cascade
// the form delete endpoint performs).
func (s *SubmissionStore) DeleteByForm(ctx context.Context, formID string) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{"form_id": formID}); err != nil {
		return fmt.Errorf("delete submissions for %s: %w", formID, err)
	}
	return nil
}
