package notify

import (
	"fmt"
	"time"

	"github.com/Jobsidney/FinanceFormFlows/models"
)

// allowedTransition encodes the delivery job state machine:
//
//	pending         -> in_flight | cancelled
//	in_flight       -> sent | failed_retrying | failed_terminal
//	failed_retrying -> in_flight | cancelled
//
// Terminal states have no outgoing transitions.
func allowedTransition(from, to models.JobStatus) bool {
	switch from {
	case models.JobPending:
		return to == models.JobInFlight || to == models.JobCancelled
	case models.JobInFlight:
		return to == models.JobSent || to == models.JobFailedRetrying || to == models.JobFailedTerminal
	case models.JobFailedRetrying:
		return to == models.JobInFlight || to == models.JobCancelled
	default:
		return false
	}
}

// transition mutates the job after validating the move. An invalid
// transition is a pipeline bug, surfaced rather than papered over.
func transition(job *models.DeliveryJob, to models.JobStatus, now time.Time) error {
	if !allowedTransition(job.Status, to) {
		return fmt.Errorf("job %s: disallowed transition %s -> %s", job.ID, job.Status, to)
	}
	job.Status = to
	job.UpdatedAt = now
	return nil
}
