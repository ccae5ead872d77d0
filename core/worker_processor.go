package core

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"
)

// WorkerProcessor reserves job ids off the queue, runs them through the
// executor, and acknowledges completion. It is the loop body
// cmd/worker/main.go drives, reporting its own liveness via heartbeat.
type WorkerProcessor struct {
	queue     *JobQueue
	jobs      *PgJobStore
	problems  *ProblemSet
	executor  *Executor
	heartbeat *HeartbeatState
	pollDelay time.Duration
}

func NewWorkerProcessor(queue *JobQueue, jobs *PgJobStore, problems *ProblemSet, executor *Executor, heartbeat *HeartbeatState) *WorkerProcessor {
	return &WorkerProcessor{
		queue:     queue,
		jobs:      jobs,
		problems:  problems,
		executor:  executor,
		heartbeat: heartbeat,
		pollDelay: time.Second,
	}
}

// Run loops Reserve -> execute -> Ack until ctx is canceled. A Reserve
// that finds nothing pending backs off for pollDelay before retrying.
func (p *WorkerProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := p.queue.Reserve(ctx)
		if err != nil {
			time.Sleep(p.pollDelay)
			continue
		}

		label := strconv.FormatInt(jobID, 10)
		if p.heartbeat != nil {
			p.heartbeat.JobStarted(label)
		}

		stopLease := p.keepLeaseAlive(ctx, jobID)
		runErr := p.process(ctx, jobID)
		stopLease()

		if p.heartbeat != nil {
			p.heartbeat.JobFinished(label, runErr)
		}
		if runErr != nil {
			log.Printf("job %d: %v", jobID, runErr)
			continue
		}
		if err := p.queue.Ack(ctx, jobID); err != nil {
			log.Printf("job %d: failed to ack: %v", jobID, err)
		}
	}
}

// keepLeaseAlive renews jobID's queue reservation every
// LeaseExtendInterval until the returned stop func is called, so a
// submission whose compile+per-case execution pipeline outruns
// DefaultVisibilityTimeout isn't handed to a second worker while this
// one is still judging it. It is a no-op once process returns.
func (p *WorkerProcessor) keepLeaseAlive(ctx context.Context, jobID int64) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(LeaseExtendInterval)
		defer ticker.Stop()
		label := strconv.FormatInt(jobID, 10)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				held, err := p.queue.Extend(ctx, jobID)
				if err != nil {
					log.Printf("job %d: extend lease: %v", jobID, err)
					continue
				}
				if held && p.heartbeat != nil {
					p.heartbeat.LeaseExtended(label)
				}
			}
		}
	}()
	return func() { close(done) }
}

func (p *WorkerProcessor) process(ctx context.Context, jobID int64) error {
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	problem, ok := p.problems.Problem(job.Submission.ProblemID)
	if !ok {
		return fmt.Errorf("problem %d not configured", job.Submission.ProblemID)
	}
	language, ok := p.problems.Language(job.Submission.Language)
	if !ok {
		return fmt.Errorf("language %q not configured", job.Submission.Language)
	}
	return p.executor.Run(ctx, &job, problem, language)
}
