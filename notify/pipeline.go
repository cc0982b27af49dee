// Package notify implements the at-least-once notification delivery
// pipeline: a per-job retry state machine over persisted delivery
// jobs, a worker pool that claims due jobs atomically, an append-only
// notification history, and the maintenance sweeps (history retention,
// orphaned-submission recovery).
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Jobsidney/FinanceFormFlows/models"
)

// ErrNotCancellable signals a cancel request for a job that is
// in_flight or already terminal.
var ErrNotCancellable = errors.New("job is not in a cancellable state")

// JobStore persists delivery jobs. ClaimDue must be atomic: a job is
// handed to at most one caller at a time, and never before its
// next_attempt_at.
type JobStore interface {
	Enqueue(ctx context.Context, job *models.DeliveryJob) error
	// ClaimDue moves one due pending/failed_retrying job to in_flight
	// and returns it, or (nil, nil) when nothing is due.
	ClaimDue(ctx context.Context, now time.Time) (*models.DeliveryJob, error)
	Update(ctx context.Context, job *models.DeliveryJob) error
	// Cancel moves a pending/failed_retrying job to cancelled and
	// returns it; ErrNotCancellable otherwise.
	Cancel(ctx context.Context, id string, now time.Time) (*models.DeliveryJob, error)
	// ReclaimStale moves in_flight jobs untouched since cutoff back to
	// failed_retrying, due immediately, and returns them. The attempt
	// count is left alone: an interrupted attempt is not a spent one.
	ReclaimStale(ctx context.Context, cutoff, now time.Time) ([]models.DeliveryJob, error)
	// DeleteBySubmission removes a submission's jobs outright (form
	// deletion cascade).
	DeleteBySubmission(ctx context.Context, submissionID string) error
}

// HistoryStore is the append-only audit surface. Records are never
// edited; DeleteOlderThan is the retention sweep's bulk retirement.
type HistoryStore interface {
	Append(ctx context.Context, rec models.NotificationRecord) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteBySubmission(ctx context.Context, submissionID string) error
}

// SubmissionSource reads accepted submissions for notification content
// and surfaces orphans (accepted submissions with no delivery job).
type SubmissionSource interface {
	Get(ctx context.Context, id string) (*models.Submission, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
	FindOrphaned(ctx context.Context, olderThan time.Time, limit int) ([]models.Submission, error)
}

// Config is the pipeline's explicit configuration. Zero values are
// replaced by the defaults below at construction.
type Config struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	PollInterval    time.Duration
	Workers         int
	RetentionWindow time.Duration
	SweepInterval   time.Duration
	// OrphanGrace keeps the recovery sweep away from submissions whose
	// enqueue may still be in progress.
	OrphanGrace time.Duration
	// LeaseTimeout bounds how long a claimed job may sit in_flight. A
	// worker that crashes mid-attempt loses its claim after this long
	// and the job is redelivered.
	LeaseTimeout time.Duration
}

// DefaultConfig mirrors the notification task's historical constants:
// three attempts, 60s backoff base, 30-day history retention.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       60 * time.Second,
		PollInterval:    5 * time.Second,
		Workers:         2,
		RetentionWindow: 30 * 24 * time.Hour,
		SweepInterval:   time.Hour,
		OrphanGrace:     time.Minute,
		LeaseTimeout:    5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = d.RetentionWindow
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.OrphanGrace <= 0 {
		c.OrphanGrace = d.OrphanGrace
	}
	if c.LeaseTimeout <= 0 {
		c.LeaseTimeout = d.LeaseTimeout
	}
	return c
}

// Pipeline owns the delivery job lifecycle end to end.
type Pipeline struct {
	jobs       JobStore
	history    HistoryStore
	subs       SubmissionSource
	dispatcher Dispatcher
	cfg        Config
	now        func() time.Time
	log        *log.Entry
}

// New wires a pipeline. The clock is time.Now; tests swap it via
// WithClock.
func New(jobs JobStore, history HistoryStore, subs SubmissionSource, dispatcher Dispatcher, cfg Config) *Pipeline {
	return &Pipeline{
		jobs:       jobs,
		history:    history,
		subs:       subs,
		dispatcher: dispatcher,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		log:        log.WithField("component", "notify"),
	}
}

// WithClock replaces the pipeline's clock.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run blocks until ctx is cancelled, polling for due jobs with the
// configured worker pool and running the maintenance sweeps.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.sweepLoop(ctx)
	}()

	wg.Wait()
}

func (p *Pipeline) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain everything currently due before sleeping again.
			for {
				processed, err := p.ProcessOne(ctx)
				if err != nil {
					p.log.WithError(err).Error("delivery attempt failed internally")
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

func (p *Pipeline) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ReclaimStale(ctx); err != nil {
				p.log.WithError(err).Error("stale claim recovery sweep failed")
			}
			if err := p.RecoverOrphans(ctx); err != nil {
				p.log.WithError(err).Error("orphan recovery sweep failed")
			}
			if err := p.RetireHistory(ctx); err != nil {
				p.log.WithError(err).Error("history retention sweep failed")
			}
		}
	}
}

// ProcessOne claims the next due job and runs one delivery attempt.
// It returns false when no job was due. Errors are internal (store
// failures); dispatch failures are absorbed into the job state.
func (p *Pipeline) ProcessOne(ctx context.Context) (bool, error) {
	job, err := p.jobs.ClaimDue(ctx, p.now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	attempt := job.AttemptCount + 1
	p.record(ctx, job, attempt, models.JobInFlight, "")

	sendErr := p.attempt(ctx, job)
	now := p.now().UTC()

	switch {
	case sendErr == nil:
		if err := transition(job, models.JobSent, now); err != nil {
			return true, err
		}
		job.AttemptCount = attempt
		job.LastError = ""
		if err := p.jobs.Update(ctx, job); err != nil {
			return true, fmt.Errorf("mark sent: %w", err)
		}
		p.record(ctx, job, attempt, models.JobSent, "")
		if err := p.subs.MarkProcessed(ctx, job.SubmissionID, now); err != nil {
			p.log.WithField("submission", job.SubmissionID).
				WithError(err).Warn("could not mark submission processed")
		}
		p.log.WithFields(log.Fields{"job": job.ID, "submission": job.SubmissionID, "attempt": attempt}).
			Info("notification sent")

	case IsPermanent(sendErr):
		if err := p.terminal(ctx, job, attempt, now, sendErr); err != nil {
			return true, err
		}

	case attempt >= p.cfg.MaxAttempts:
		if err := p.terminal(ctx, job, attempt, now, sendErr); err != nil {
			return true, err
		}

	default:
		if err := transition(job, models.JobFailedRetrying, now); err != nil {
			return true, err
		}
		// Exponential backoff: base * 2^(attempts before this failure).
		delay := p.cfg.BaseDelay * (1 << uint(attempt-1))
		job.AttemptCount = attempt
		job.LastError = sendErr.Error()
		job.NextAttemptAt = now.Add(delay)
		if err := p.jobs.Update(ctx, job); err != nil {
			return true, fmt.Errorf("schedule retry: %w", err)
		}
		p.record(ctx, job, attempt, models.JobFailedRetrying, sendErr.Error())
		p.log.WithFields(log.Fields{"job": job.ID, "attempt": attempt, "retry_in": delay}).
			WithError(sendErr).Warn("notification attempt failed, retry scheduled")
	}

	return true, nil
}

// attempt loads the submission and dispatches its notification. A
// submission that no longer exists is a permanent failure.
func (p *Pipeline) attempt(ctx context.Context, job *models.DeliveryJob) error {
	sub, err := p.subs.Get(ctx, job.SubmissionID)
	if err != nil {
		return Permanent(fmt.Errorf("load submission %s: %w", job.SubmissionID, err))
	}
	return p.dispatcher.Send(ctx, Notification{
		SubmissionID: sub.ID,
		FormName:     sub.FormName,
		SubmittedBy:  sub.SubmittedBy,
		SubmittedAt:  sub.SubmittedAt,
		Data:         sub.Data,
		Files:        sub.Files,
	})
}

func (p *Pipeline) terminal(ctx context.Context, job *models.DeliveryJob, attempt int, now time.Time, cause error) error {
	if err := transition(job, models.JobFailedTerminal, now); err != nil {
		return err
	}
	job.AttemptCount = attempt
	job.LastError = cause.Error()
	if err := p.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("mark terminal: %w", err)
	}
	p.record(ctx, job, attempt, models.JobFailedTerminal, cause.Error())
	// Surfaced to operators only; the submitter already received
	// acceptance.
	p.log.WithFields(log.Fields{"job": job.ID, "submission": job.SubmissionID, "attempts": attempt}).
		WithError(cause).Error("notification delivery failed terminally")
	return nil
}

// Cancel cancels a job that is not currently being attempted. An
// in_flight job cannot be cancelled; callers retry after the attempt
// resolves.
func (p *Pipeline) Cancel(ctx context.Context, jobID string) error {
	job, err := p.jobs.Cancel(ctx, jobID, p.now().UTC())
	if err != nil {
		return err
	}
	p.record(ctx, job, job.AttemptCount, models.JobCancelled, "")
	p.log.WithFields(log.Fields{"job": job.ID, "submission": job.SubmissionID}).Info("delivery job cancelled")
	return nil
}

// ReclaimStale returns jobs abandoned mid-attempt by a crashed worker
// to the retry queue. The lease is the updated_at stamp written at
// claim time; once it ages past LeaseTimeout the claim is void and the
// job becomes due again, without consuming an attempt. Redelivery of
// an attempt whose dispatch actually succeeded is the accepted
// duplicate-send window of at-least-once delivery.
func (p *Pipeline) ReclaimStale(ctx context.Context) error {
	now := p.now().UTC()
	jobs, err := p.jobs.ReclaimStale(ctx, now.Add(-p.cfg.LeaseTimeout), now)
	if err != nil {
		return fmt.Errorf("reclaim stale jobs: %w", err)
	}
	for i := range jobs {
		job := &jobs[i]
		p.record(ctx, job, job.AttemptCount+1, models.JobFailedRetrying, "worker lease expired")
		p.log.WithFields(log.Fields{"job": job.ID, "submission": job.SubmissionID}).
			Warn("reclaimed job from expired worker lease")
	}
	return nil
}

// PurgeSubmission removes a submission's delivery jobs and notification
// history. Used by the form deletion cascade; a purged job simply
// ceases to exist, with no terminal transition recorded.
func (p *Pipeline) PurgeSubmission(ctx context.Context, submissionID string) error {
	if err := p.jobs.DeleteBySubmission(ctx, submissionID); err != nil {
		return fmt.Errorf("purge jobs for %s: %w", submissionID, err)
	}
	if err := p.history.DeleteBySubmission(ctx, submissionID); err != nil {
		return fmt.Errorf("purge history for %s: %w", submissionID, err)
	}
	return nil
}

// RecoverOrphans enqueues a delivery job for every accepted submission
// that has none. This heals the crash window between persisting a
// submission and enqueueing its job.
func (p *Pipeline) RecoverOrphans(ctx context.Context) error {
	now := p.now().UTC()
	orphans, err := p.subs.FindOrphaned(ctx, now.Add(-p.cfg.OrphanGrace), 100)
	if err != nil {
		return fmt.Errorf("find orphans: %w", err)
	}
	for i := range orphans {
		job := &models.DeliveryJob{
			ID:            uuid.NewString(),
			SubmissionID:  orphans[i].ID,
			Status:        models.JobPending,
			CreatedAt:     now,
			NextAttemptAt: now,
			UpdatedAt:     now,
		}
		if err := p.jobs.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue recovered job for %s: %w", orphans[i].ID, err)
		}
		p.log.WithFields(log.Fields{"submission": orphans[i].ID, "job": job.ID}).
			Warn("recovered orphaned submission")
	}
	return nil
}

// RetireHistory bulk-deletes notification history older than the
// retention window. Active jobs are unaffected.
func (p *Pipeline) RetireHistory(ctx context.Context) error {
	cutoff := p.now().UTC().Add(-p.cfg.RetentionWindow)
	n, err := p.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retire history: %w", err)
	}
	if n > 0 {
		p.log.WithField("records", n).Info("retired old notification history")
	}
	return nil
}

// record appends one immutable history entry. Append failures are
// logged, not fatal: the job state transition has already happened and
// must not be rolled back for an audit write.
func (p *Pipeline) record(ctx context.Context, job *models.DeliveryJob, attempt int, status models.JobStatus, errMsg string) {
	rec := models.NotificationRecord{
		SubmissionID: job.SubmissionID,
		JobID:        job.ID,
		Attempt:      attempt,
		Status:       status,
		Timestamp:    p.now().UTC(),
		ErrorMessage: errMsg,
	}
	if err := p.history.Append(ctx, rec); err != nil {
		p.log.WithFields(log.Fields{"job": job.ID, "status": status}).
			WithError(err).Error("could not append notification history")
	}
}
