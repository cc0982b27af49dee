// Package submit orchestrates a client submission: resolve the form
// template, validate the payload, and on acceptance persist the
// submission and enqueue exactly one delivery job. Rejection has no
// side effects.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Jobsidney/FinanceFormFlows/models"
	"github.com/Jobsidney/FinanceFormFlows/validate"
)

// ErrSchemaNotFound signals that the submission target does not exist.
// Distinct from validation errors: the payload was never inspected.
var ErrSchemaNotFound = errors.New("form template not found")

// ErrSchemaInactive signals that the target exists but no longer
// accepts submissions.
var ErrSchemaInactive = errors.New("form template is inactive")

// SchemaStore supplies form templates by id. Implementations must
// return ErrSchemaNotFound (wrapped or not) for unknown ids, and must
// hand back the template snapshot as stored; the processor never
// revalidates against a template that has since changed.
type SchemaStore interface {
	Get(ctx context.Context, id string) (*models.FormTemplate, error)
}

// SubmissionStore persists accepted submissions.
type SubmissionStore interface {
	Persist(ctx context.Context, sub *models.Submission) error
	MarkProcessed(ctx context.Context, id string, at time.Time) error
}

// JobQueue enqueues delivery jobs for accepted submissions.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.DeliveryJob) error
}

// Processor is the submission orchestrator.
type Processor struct {
	schemas SchemaStore
	subs    SubmissionStore
	jobs    JobQueue
	engine  *validate.Engine
	now     func() time.Time
}

// NewProcessor wires a processor from its collaborators.
func NewProcessor(schemas SchemaStore, subs SubmissionStore, jobs JobQueue, engine *validate.Engine) *Processor {
	return &Processor{
		schemas: schemas,
		subs:    subs,
		jobs:    jobs,
		engine:  engine,
		now:     time.Now,
	}
}

// Submit validates a payload against the template with the given id.
//
// On rejection the returned result carries the complete field error
// list and nothing is persisted or enqueued. On acceptance exactly one
// submission is persisted and one delivery job enqueued; if the enqueue
// fails after the persist succeeded, the submission is still accepted
// and the orphan-recovery sweep guarantees eventual delivery.
func (p *Processor) Submit(ctx context.Context, formID string, payload models.Payload) (string, *models.ValidationResult, error) {
	tmpl, err := p.schemas.Get(ctx, formID)
	if err != nil {
		return "", nil, err
	}
	if !tmpl.Active {
		return "", nil, ErrSchemaInactive
	}

	result := p.engine.Validate(tmpl, payload)
	if !result.Accepted() {
		return "", result, nil
	}

	submittedBy := payload.SubmittedBy
	if submittedBy == "" {
		submittedBy = "Anonymous"
	}

	now := p.now().UTC()
	sub := &models.Submission{
		ID:          uuid.NewString(),
		FormID:      tmpl.ID,
		FormName:    tmpl.Name,
		SubmittedBy: submittedBy,
		SubmittedAt: now,
		Data:        result.Normalized,
		Files:       payload.Files,
	}

	if err := p.subs.Persist(ctx, sub); err != nil {
		return "", nil, fmt.Errorf("persist submission: %w", err)
	}

	job := &models.DeliveryJob{
		ID:            uuid.NewString(),
		SubmissionID:  sub.ID,
		Status:        models.JobPending,
		CreatedAt:     now,
		NextAttemptAt: now,
		UpdatedAt:     now,
	}
	if err := p.jobs.Enqueue(ctx, job); err != nil {
		// The submission is already accepted; the recovery sweep will
		// find it without a job and enqueue one.
		log.WithFields(log.Fields{"submission": sub.ID, "form": tmpl.ID}).
			WithError(err).Error("delivery job enqueue failed, leaving orphan for recovery")
	}

	return sub.ID, result, nil
}
