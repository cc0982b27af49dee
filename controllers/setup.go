// Package controllers holds the HTTP handlers. They are thin: schema
// authoring checks, submission processing and delivery all live in
// their own packages; handlers decode, delegate and respond.
package controllers

import (
	"context"
	"time"

	"github.com/Jobsidney/FinanceFormFlows/models"
)

// FormRepo is the template storage the handlers use.
type FormRepo interface {
	Get(ctx context.Context, id string) (*models.FormTemplate, error)
	Create(ctx context.Context, t *models.FormTemplate) error
	Replace(ctx context.Context, t *models.FormTemplate, creator string) error
	List(ctx context.Context, creator string) ([]models.FormTemplate, error)
	Delete(ctx context.Context, id string) error
}

// SubmissionRepo is the submission read/admin surface.
type SubmissionRepo interface {
	ListByForm(ctx context.Context, formID string) ([]models.Submission, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
	DeleteByForm(ctx context.Context, formID string) error
}

// HistoryRepo reads the notification audit trail.
type HistoryRepo interface {
	ListBySubmission(ctx context.Context, submissionID string) ([]models.NotificationRecord, error)
}

// Submitter runs the submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, formID string, payload models.Payload) (string, *models.ValidationResult, error)
}

// DeliveryAdmin is the delivery pipeline's administrative surface:
// cancelling queued jobs and purging a deleted submission's delivery
// artifacts.
type DeliveryAdmin interface {
	Cancel(ctx context.Context, jobID string) error
	PurgeSubmission(ctx context.Context, submissionID string) error
}

var (
	Forms       FormRepo
	Submissions SubmissionRepo
	History     HistoryRepo
	Processor   Submitter
	Jobs        DeliveryAdmin
)

// Setup wires the handlers' collaborators. Called once from main, and
// from tests with in-memory fakes.
func Setup(forms FormRepo, subs SubmissionRepo, history HistoryRepo, processor Submitter, jobs DeliveryAdmin) {
	Forms = forms
	Submissions = subs
	History = history
	Processor = processor
	Jobs = jobs
}
