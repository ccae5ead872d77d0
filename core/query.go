package core

import (
	"context"
	"time"
)

// JobQuery is the composite predicate C5's list operation accepts,
// resolved from the wire form (spec §5): a user_name is resolved to a
// user_id before reaching JobFilter.
type JobQuery struct {
	Filter JobFilter
	Offset int
	Limit  int
}

// Query answers read operations over persisted jobs and drives retest
// (spec §5).
type Query struct {
	problems *ProblemSet
	users    *PgUserStore
	jobs     *PgJobStore
	queue    *JobQueue
}

func NewQuery(problems *ProblemSet, users *PgUserStore, jobs *PgJobStore, queue *JobQueue) *Query {
	return &Query{problems: problems, users: users, jobs: jobs, queue: queue}
}

// Get returns a single job by id.
func (q *Query) Get(ctx context.Context, id int64) (Job, error) {
	return q.jobs.Get(ctx, id)
}

// List resolves userName (if set) to a user id and returns matching
// jobs, sorted by created_time ascending, with the total count ignoring
// pagination (spec §5). When both a user_name and a user_id are given
// and they name different users, the query can never match anything,
// so an empty result is returned without touching the store.
func (q *Query) List(ctx context.Context, userName string, query JobQuery) ([]Job, int, error) {
	if userName != "" {
		user, err := q.users.GetByName(ctx, userName)
		if err != nil {
			return nil, 0, err
		}
		if query.Filter.UserID != nil && *query.Filter.UserID != user.ID {
			return nil, 0, nil
		}
		query.Filter.UserID = &user.ID
	}
	if query.Limit <= 0 {
		query.Limit = 100
	}
	return q.jobs.List(ctx, query.Filter, query.Offset, query.Limit)
}

// Retest resets job to Queueing/Waiting and redispatches it for
// execution, the same path a fresh submission takes (spec §5). Only a
// Finished job may be retested; any other state means judging is
// already in flight or the job was canceled (spec §4.5, §6).
func (q *Query) Retest(ctx context.Context, id int64) (Job, error) {
	job, err := q.jobs.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.State != JobFinished {
		return Job{}, invalidState("job %d is not Finished (state=%s)", id, job.State)
	}
	problem, ok := q.problems.Problem(job.Submission.ProblemID)
	if !ok {
		return Job{}, notFound("problem %d not found", job.Submission.ProblemID)
	}

	job.State = JobQueueing
	job.Result = VerdictWaiting
	job.Score = 0
	job.Cases = NewWaitingCases(len(problem.Cases))
	job.UpdatedTime = time.Now()

	if err := q.jobs.Save(ctx, &job); err != nil {
		return Job{}, err
	}
	if err := q.queue.Dispatch(ctx, job.ID); err != nil {
		return Job{}, external("failed to dispatch retest for job %d: %v", job.ID, err)
	}
	return job, nil
}
