// Package jobs provides a PostgreSQL-backed background job queue with
// worker pools, retries, and interval scheduling.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// QueueDefault is the queue all tradefloor background work runs on.
const QueueDefault = "default"

// Known job types. Handlers for these are registered by the serve and
// worker commands.
const (
	// TypePushDispatch delivers web push notifications for one message.
	// Payload: {"message_id": "<uuid>"}.
	TypePushDispatch = "push.dispatch"
	// TypeNotificationsPurge deletes read notifications past retention.
	TypeNotificationsPurge = "notifications.purge"
	// TypeJobsPurge deletes finished jobs past retention.
	TypeJobsPurge = "jobs.purge"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job finished successfully
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed after all retries
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled
	JobStatusCancelled JobStatus = "cancelled"
)

// JobPriority represents the priority level of a job
type JobPriority int

const (
	// PriorityLow is for non-urgent background tasks
	PriorityLow JobPriority = 0
	// PriorityNormal is the default priority
	PriorityNormal JobPriority = 50
	// PriorityHigh is for important tasks
	PriorityHigh JobPriority = 75
)

// Job represents a background job with all its metadata
type Job struct {
	ID          uuid.UUID              `db:"id" json:"id"`
	Queue       string                 `db:"queue" json:"queue"`
	Type        string                 `db:"type" json:"type"`
	Payload     map[string]interface{} `db:"payload" json:"payload"`
	Status      JobStatus              `db:"status" json:"status"`
	Priority    JobPriority            `db:"priority" json:"priority"`
	Attempts    int                    `db:"attempts" json:"attempts"`
	MaxAttempts int                    `db:"max_attempts" json:"max_attempts"`
	Error       *string                `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
	RunAt       time.Time              `db:"run_at" json:"run_at"`
	StartedAt   *time.Time             `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time             `db:"completed_at" json:"completed_at,omitempty"`
	LockedBy    *string                `db:"locked_by" json:"locked_by,omitempty"`
	LockedAt    *time.Time             `db:"locked_at" json:"locked_at,omitempty"`
}

// NewJob creates a pending job on the default queue
func NewJob(jobType string, payload map[string]interface{}) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.New(),
		Queue:       QueueDefault,
		Type:        jobType,
		Payload:     payload,
		Status:      JobStatusPending,
		Priority:    PriorityNormal,
		Attempts:    0,
		MaxAttempts: 3,
		CreatedAt:   now,
		RunAt:       now,
	}
}

// IsRetryable returns true if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Attempts < j.MaxAttempts
}
