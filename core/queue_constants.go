package core

import "time"

// Queue key names and the default visibility timeout for the job
// dispatch queue (spec §9: async handoff from intake to the worker).
const (
	PendingQueueKey    = "pending_jobs"
	ProcessingQueueKey = "processing_jobs"
	// DefaultVisibilityTimeout bounds how long a worker may hold a
	// reserved job before it's eligible to be requeued to another worker.
	DefaultVisibilityTimeout = 30 * time.Second
	// LeaseExtendInterval is how often an actively-judging worker renews
	// its hold on a job, so a compile+per-case execution pipeline that
	// runs longer than DefaultVisibilityTimeout doesn't get duplicated
	// onto a second worker while the first is still judging it.
	LeaseExtendInterval = DefaultVisibilityTimeout / 3
)
