package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Jobsidney/FinanceFormFlows/models"
)

// HistoryStore is the append-only notification log, in the
// "notification_log" collection. Records are inserted and bulk-deleted
// by the retention sweep; nothing updates them in place.
type HistoryStore struct {
	col *mongo.Collection
}

func NewHistoryStore(db *mongo.Database) *HistoryStore {
	return &HistoryStore{col: db.Collection("notification_log")}
}

func (s *HistoryStore) Append(ctx context.Context, rec models.NotificationRecord) error {
	if _, err := s.col.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("append notification record: %w", err)
	}
	return nil
}

func (s *HistoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("retire notification records: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteBySubmission removes a submission's records (form deletion
// cascade).
func (s *HistoryStore) DeleteBySubmission(ctx context.Context, submissionID string) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{"submission_id": submissionID}); err != nil {
		return fmt.Errorf("delete notification records for %s: %w", submissionID, err)
	}
	return nil
}

// ListBySubmission returns a submission's history in the order it was
// written.
func (s *HistoryStore) ListBySubmission(ctx context.Context, submissionID string) ([]models.NotificationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "attempt_number", Value: 1}})
	cur, err := s.col.Find(ctx, bson.M{"submission_id": submissionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list notification records for %s: %w", submissionID, err)
	}
	defer cur.Close(ctx)

	recs := []models.NotificationRecord{}
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode notification records: %w", err)
	}
	return recs, nil
}
