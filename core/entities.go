package core

import (
	"context"
	"time"
)

// Entities implements C7: users and contests CRUD with the uniqueness
// and referential-integrity checks spec §4.7 describes. It sits above
// PgUserStore/PgContestStore, which do the actual row access.
type Entities struct {
	problems *ProblemSet
	users    *PgUserStore
	contests *PgContestStore
}

func NewEntities(problems *ProblemSet, users *PgUserStore, contests *PgContestStore) *Entities {
	return &Entities{problems: problems, users: users, contests: contests}
}

// UserUpsert is the wire form of a POST /users body: an absent ID means
// create, a present one means update (spec §4.7).
type UserUpsert struct {
	ID   *int64
	Name string
}

// PutUser creates a new user with an assigned id when req.ID is nil, or
// renames the existing user with that id otherwise.
func (e *Entities) PutUser(ctx context.Context, req UserUpsert) (User, error) {
	if req.ID == nil {
		return e.users.Create(ctx, req.Name)
	}
	existing, err := e.users.Get(ctx, *req.ID)
	if err != nil {
		return User{}, err
	}
	if existing.Name == req.Name {
		return existing, nil
	}
	return e.users.Rename(ctx, *req.ID, req.Name)
}

func (e *Entities) ListUsers(ctx context.Context) ([]User, error) {
	return e.users.List(ctx)
}

// ContestUpsert is the wire form of a POST /contests body.
type ContestUpsert struct {
	ID              *int64
	Name            string
	From            time.Time
	To              time.Time
	ProblemIDs      []int64
	UserIDs         []int64
	SubmissionLimit int
}

// PutContest creates a new contest with an assigned id when req.ID is
// nil, or updates the existing contest with that id otherwise. Contest
// 0 can never be targeted directly (spec §4.7).
func (e *Entities) PutContest(ctx context.Context, req ContestUpsert) (Contest, error) {
	if req.ID != nil && *req.ID == GlobalContestID {
		return Contest{}, invalidArgument("contest id 0 is reserved")
	}
	if err := e.validateContestMembership(ctx, req.ProblemIDs, req.UserIDs); err != nil {
		return Contest{}, err
	}

	contest := Contest{
		Name:            req.Name,
		From:            req.From,
		To:              req.To,
		ProblemIDs:      req.ProblemIDs,
		UserIDs:         req.UserIDs,
		SubmissionLimit: req.SubmissionLimit,
	}

	if req.ID == nil {
		return e.contests.Create(ctx, contest)
	}
	contest.ID = *req.ID
	return e.contests.Update(ctx, contest)
}

func (e *Entities) validateContestMembership(ctx context.Context, problemIDs, userIDs []int64) error {
	seenProblems := map[int64]bool{}
	for _, pid := range problemIDs {
		if seenProblems[pid] {
			return invalidArgument("duplicate problem id %d", pid)
		}
		seenProblems[pid] = true
		if _, ok := e.problems.Problem(pid); !ok {
			return invalidArgument("problem %d is not configured", pid)
		}
	}
	seenUsers := map[int64]bool{}
	for _, uid := range userIDs {
		if seenUsers[uid] {
			return invalidArgument("duplicate user id %d", uid)
		}
		seenUsers[uid] = true
		if _, err := e.users.Get(ctx, uid); err != nil {
			return invalidArgument("user %d does not exist", uid)
		}
	}
	return nil
}

func (e *Entities) GetContest(ctx context.Context, id int64) (Contest, error) {
	return e.contests.Get(ctx, id)
}

func (e *Entities) ListContests(ctx context.Context) ([]Contest, error) {
	return e.contests.List(ctx)
}
