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
	"github.com/Jobsidney/FinanceFormFlows/notify"
)

// ErrJobNotFound signals an unknown delivery job id.
var ErrJobNotFound = errors.New("delivery job not found")

// JobStore persists delivery jobs in the "delivery_jobs" collection.
// Claiming uses FindOneAndUpdate so that a due job moves to in_flight
// for exactly one caller, which is what keeps concurrent workers from
// double-sending.
type JobStore struct {
	col *mongo.Collection
}

func NewJobStore(db *mongo.Database) *JobStore {
	return &JobStore{col: db.Collection("delivery_jobs")}
}

func (s *JobStore) Enqueue(ctx context.Context, job *models.DeliveryJob) error {
	if _, err := s.col.InsertOne(ctx, job); err != nil {
		return fmt.Errorf("insert delivery job: %w", err)
	}
	return nil
}

// ClaimDue atomically claims the oldest due job. A job whose
// next_attempt_at is still in the future is never claimed.
func (s *JobStore) ClaimDue(ctx context.Context, now time.Time) (*models.DeliveryJob, error) {
	filter := bson.M{
		"status":          bson.M{"$in": []models.JobStatus{models.JobPending, models.JobFailedRetrying}},
		"next_attempt_at": bson.M{"$lte": now},
	}
	update := bson.M{"$set": bson.M{"status": models.JobInFlight, "updated_at": now}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "next_attempt_at", Value: 1}}).
		SetReturnDocument(options.After)

	var job models.DeliveryJob
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim delivery job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) Update(ctx context.Context, job *models.DeliveryJob) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": job.ID}, job)
	if err != nil {
		return fmt.Errorf("update delivery job %s: %w", job.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ReclaimStale returns in_flight jobs whose claim stamp has aged past
// cutoff to failed_retrying, due immediately. Reclaimed one at a time
// so each job comes back for the caller's audit record.
func (s *JobStore) ReclaimStale(ctx context.Context, cutoff, now time.Time) ([]models.DeliveryJob, error) {
	filter := bson.M{
		"status":     models.JobInFlight,
		"updated_at": bson.M{"$lte": cutoff},
	}
	update := bson.M{"$set": bson.M{
		"status":          models.JobFailedRetrying,
		"next_attempt_at": now,
		"updated_at":      now,
		"last_error":      "worker lease expired",
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var reclaimed []models.DeliveryJob
	for {
		var job models.DeliveryJob
		err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return reclaimed, nil
		}
		if err != nil {
			return reclaimed, fmt.Errorf("reclaim stale job: %w", err)
		}
		reclaimed = append(reclaimed, job)
	}
}

// DeleteBySubmission removes all of a submission's jobs (form deletion
// cascade).
func (s *JobStore) DeleteBySubmission(ctx context.Context, submissionID string) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{"submission_id": submissionID}); err != nil {
		return fmt.Errorf("delete jobs for %s: %w", submissionID, err)
	}
	return nil
}

// Cancel moves a pending or failed_retrying job to cancelled. An
// in_flight or terminal job is reported as not cancellable.
func (s *JobStore) Cancel(ctx context.Context, id string, now time.Time) (*models.DeliveryJob, error) {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": []models.JobStatus{models.JobPending, models.JobFailedRetrying}},
	}
	update := bson.M{"$set": bson.M{"status": models.JobCancelled, "updated_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var job models.DeliveryJob
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Distinguish "no such job" from "wrong state".
		n, cerr := s.col.CountDocuments(ctx, bson.M{"_id": id})
		if cerr != nil {
			return nil, fmt.Errorf("cancel delivery job %s: %w", id, cerr)
		}
		if n == 0 {
			return nil, ErrJobNotFound
		}
		return nil, notify.ErrNotCancellable
	}
	if err != nil {
		return nil, fmt.Errorf("cancel delivery job %s: %w", id, err)
	}
	return &job, nil
}
