package core

import (
	"context"
	"time"
)

// SubmitRequest is the validated input to C4 (spec §4.4).
type SubmitRequest struct {
	SourceCode string
	Language   string
	UserID     int64
	ContestID  int64
	ProblemID  int64
}

// Intake validates and persists new submissions, then hands them off to
// the queue for asynchronous judging (spec §4.4, §9).
type Intake struct {
	problems *ProblemSet
	users    *PgUserStore
	contests *PgContestStore
	jobs     *PgJobStore
	queue    *JobQueue
}

func NewIntake(problems *ProblemSet, users *PgUserStore, contests *PgContestStore, jobs *PgJobStore, queue *JobQueue) *Intake {
	return &Intake{problems: problems, users: users, contests: contests, jobs: jobs, queue: queue}
}

// Submit validates req in the order spec §4.4 specifies, assigns the
// job a dense ascending id, persists its initial Waiting record, and
// dispatches it for execution. It returns the initial record so the
// caller can answer the HTTP request without waiting on judging.
func (in *Intake) Submit(ctx context.Context, req SubmitRequest) (Job, error) {
	problem, ok := in.problems.Problem(req.ProblemID)
	if !ok {
		return Job{}, notFound("problem %d not found", req.ProblemID)
	}
	if _, ok := in.problems.Language(req.Language); !ok {
		return Job{}, notFound("language %q not found", req.Language)
	}
	if _, err := in.users.Get(ctx, req.UserID); err != nil {
		return Job{}, err
	}

	contestID := req.ContestID
	if contestID == 0 {
		contestID = GlobalContestID
	}
	contest, err := in.contests.Get(ctx, contestID)
	if err != nil {
		return Job{}, err
	}

	if contestID != GlobalContestID {
		if !containsID(contest.ProblemIDs, req.ProblemID) {
			return Job{}, invalidArgument("problem %d is not part of contest %d", req.ProblemID, contestID)
		}
		if !containsID(contest.UserIDs, req.UserID) {
			return Job{}, invalidArgument("user %d is not a participant of contest %d", req.UserID, contestID)
		}

		now := time.Now()
		if now.Before(contest.From) || now.After(contest.To) {
			return Job{}, invalidArgument("submit time invalid: contest %d is not accepting submissions at this time", contestID)
		}

		if contest.SubmissionLimit > 0 {
			count, err := in.jobs.CountByUserAndContest(ctx, req.UserID, contestID)
			if err != nil {
				return Job{}, err
			}
			if count >= contest.SubmissionLimit {
				return Job{}, rateLimit("user %d has reached the submission limit for contest %d", req.UserID, contestID)
			}
		}
	}

	job := Job{
		Submission: Submission{
			SourceCode: req.SourceCode,
			Language:   req.Language,
			UserID:     req.UserID,
			ContestID:  contestID,
			ProblemID:  req.ProblemID,
		},
		State:  JobQueueing,
		Result: VerdictWaiting,
		Cases:  NewWaitingCases(len(problem.Cases)),
	}

	if err := in.jobs.Create(ctx, &job); err != nil {
		return Job{}, err
	}

	if err := in.queue.Dispatch(ctx, job.ID); err != nil {
		return Job{}, external("failed to dispatch job %d: %v", job.ID, err)
	}

	return job, nil
}

func containsID(ids []int64, target int64) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
