package models

import (
	"time"
)

// JobStatus is the lifecycle state of a delivery job.
type JobStatus string

const (
	JobPending        JobStatus = "pending"
	JobInFlight       JobStatus = "in_flight"
	JobSent           JobStatus = "sent"
	JobFailedRetrying JobStatus = "failed_retrying"
	JobFailedTerminal JobStatus = "failed_terminal"
	JobCancelled      JobStatus = "cancelled"
)

// Terminal reports whether a job in this status will never be attempted
// again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSent, JobFailedTerminal, JobCancelled:
		return true
	}
	return false
}

// DeliveryJob is one unit of retryable notification work, tied to one
// accepted submission. Its lifecycle is owned solely by the delivery
// pipeline.
type DeliveryJob struct {
	ID            string    `json:"id" bson:"_id"`
	SubmissionID  string    `json:"submission_id" bson:"submission_id"`
	AttemptCount  int       `json:"attempt_count" bson:"attempt_count"`
	Status        JobStatus `json:"status" bson:"status"`
	LastError     string    `json:"last_error,omitempty" bson:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	NextAttemptAt time.Time `json:"next_attempt_at" bson:"next_attempt_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// NotificationRecord is one append-only entry in a submission's
// notification history. Records are never edited, only appended and
// later bulk-retired by the retention sweep.
type NotificationRecord struct {
	SubmissionID string    `json:"submission_id" bson:"submission_id"`
	JobID        string    `json:"job_id" bson:"job_id"`
	Attempt      int       `json:"attempt_number" bson:"attempt_number"`
	Status       JobStatus `json:"status" bson:"status"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
	ErrorMessage string    `json:"error_message,omitempty" bson:"error_message,omitempty"`
}
