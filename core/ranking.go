package core

import (
	"context"
	"math"
)

// ScoringRule selects how a user's representative submission for a
// problem is chosen (spec §4.6).
type ScoringRule string

const (
	ScoringHighest ScoringRule = "highest"
	ScoringLatest  ScoringRule = "latest"
)

// TieBreaker selects the secondary ordering among users tied on final
// score (spec §4.6).
type TieBreaker string

const (
	TieBreakerNone            TieBreaker = ""
	TieBreakerSubmissionCount TieBreaker = "submission_count"
	TieBreakerSubmissionTime  TieBreaker = "submission_time"
	TieBreakerUserID          TieBreaker = "user_id"
)

// RankRow is one line of a ranklist: a user's rank, final score, and
// the per-problem representative scores in problem-id order.
type RankRow struct {
	UserID int64
	Rank   int
	Score  float64
	Scores []float64

	submissionCount int
	// latestCreated is the user's latest representative submission time
	// (unix nanos); math.MaxInt64 when the user has no submission in
	// scope, so the ascending submission_time tie-break treats them as
	// latest (spec §4.6) and sorts them last among score-tied rows.
	latestCreated int64
}

// Ranking produces contest ranklists (C6).
type Ranking struct {
	problems *ProblemSet
	users    *PgUserStore
	contests *PgContestStore
	jobs     *PgJobStore
}

func NewRanking(problems *ProblemSet, users *PgUserStore, contests *PgContestStore, jobs *PgJobStore) *Ranking {
	return &Ranking{problems: problems, users: users, contests: contests, jobs: jobs}
}

type representative struct {
	score     float64
	created   int64
	hasSubmit bool
}

type rankKey struct {
	user, problem int64
}

// Rank computes the ordered ranklist for contestID under the given
// scoring rule and tie-breaker (spec §4.6). An unset scoringRule
// defaults to "highest" per §9.
func (rk *Ranking) Rank(ctx context.Context, contestID int64, scoringRule ScoringRule, tieBreaker TieBreaker) ([]RankRow, error) {
	if scoringRule == "" {
		scoringRule = ScoringHighest
	}

	var userIDs, problemIDs []int64
	if contestID == GlobalContestID {
		users, err := rk.users.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			userIDs = append(userIDs, u.ID)
		}
		problemIDs = rk.problems.AllProblemIDs()
	} else {
		contest, err := rk.contests.Get(ctx, contestID)
		if err != nil {
			return nil, err
		}
		userIDs = contest.UserIDs
		problemIDs = append([]int64(nil), contest.ProblemIDs...)
		sortInt64s(problemIDs)
	}

	// Scoped to this contest's own submissions: a contest ranklist
	// reflects what was submitted within that contest, not a user's
	// unrelated history in other contests.
	filterContest := contestID
	finished, err := rk.jobs.ListAll(ctx, JobFilter{ContestID: &filterContest, State: JobFinished})
	if err != nil {
		return nil, err
	}

	byKey := map[rankKey][]Job{}
	for _, j := range finished {
		k := rankKey{j.Submission.UserID, j.Submission.ProblemID}
		byKey[k] = append(byKey[k], j)
	}

	var submissionCounts map[int64]int
	if tieBreaker == TieBreakerSubmissionCount {
		submissionCounts = map[int64]int{}
		for _, uid := range userIDs {
			uidCopy := uid
			all, err := rk.jobs.ListAll(ctx, JobFilter{UserID: &uidCopy})
			if err != nil {
				return nil, err
			}
			submissionCounts[uid] = len(all)
		}
	}

	rows := make([]RankRow, 0, len(userIDs))
	for _, uid := range userIDs {
		row := RankRow{UserID: uid, Scores: make([]float64, len(problemIDs))}
		hasAnySubmission := false
		for i, pid := range problemIDs {
			rep := bestRepresentative(byKey[rankKey{uid, pid}], scoringRule)
			row.Scores[i] = rep.score
			row.Score += rep.score
			if rep.hasSubmit {
				hasAnySubmission = true
				if rep.created > row.latestCreated {
					row.latestCreated = rep.created
				}
			}
		}
		if !hasAnySubmission {
			row.latestCreated = math.MaxInt64
		}
		if submissionCounts != nil {
			row.submissionCount = submissionCounts[uid]
		}
		rows = append(rows, row)
	}

	sortRankRows(rows, tieBreaker)
	return assignCompetitiveRanks(rows, tieBreaker), nil
}

// bestRepresentative selects the representative submission among a
// user's finished jobs for one problem (spec §4.6). An empty jobs slice
// yields a zero-score, no-submission representative.
func bestRepresentative(jobs []Job, rule ScoringRule) representative {
	if len(jobs) == 0 {
		return representative{}
	}
	best := representative{score: jobs[0].Score, created: jobs[0].CreatedTime.UnixNano(), hasSubmit: true}
	for _, j := range jobs[1:] {
		created := j.CreatedTime.UnixNano()
		switch rule {
		case ScoringLatest:
			if created > best.created {
				best = representative{score: j.Score, created: created, hasSubmit: true}
			}
		default: // highest
			if j.Score > best.score || (j.Score == best.score && created < best.created) {
				best = representative{score: j.Score, created: created, hasSubmit: true}
			}
		}
	}
	return best
}

// sortRankRows orders rows by final score descending, then by
// tie_breaker, then by ascending user id as the final deterministic
// fallback (spec §4.6).
func sortRankRows(rows []RankRow, tieBreaker TieBreaker) {
	less := func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch tieBreaker {
		case TieBreakerSubmissionCount:
			if a.submissionCount != b.submissionCount {
				return a.submissionCount < b.submissionCount
			}
		case TieBreakerSubmissionTime:
			if a.latestCreated != b.latestCreated {
				return a.latestCreated < b.latestCreated
			}
		case TieBreakerUserID:
			if a.UserID != b.UserID {
				return a.UserID < b.UserID
			}
		}
		return a.UserID < b.UserID
	}
	insertionSort(rows, less)
}

func insertionSort(rows []RankRow, less func(i, j int) bool) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0; j-- {
			if less(j, j-1) {
				rows[j], rows[j-1] = rows[j-1], rows[j]
			} else {
				break
			}
		}
	}
}

// assignCompetitiveRanks applies "1224" ranking: row i shares row i-1's
// rank iff they compare equal under (final_score, tie_breaker) — user
// id is excluded from that equality test regardless of tie_breaker
// choice; it only orders otherwise-tied rows (spec §4.6).
func assignCompetitiveRanks(rows []RankRow, tieBreaker TieBreaker) []RankRow {
	for i := range rows {
		if i == 0 {
			rows[i].Rank = 1
			continue
		}
		if rankEqual(rows[i-1], rows[i], tieBreaker) {
			rows[i].Rank = rows[i-1].Rank
		} else {
			rows[i].Rank = i + 1
		}
	}
	return rows
}

func rankEqual(a, b RankRow, tieBreaker TieBreaker) bool {
	if a.Score != b.Score {
		return false
	}
	switch tieBreaker {
	case TieBreakerSubmissionCount:
		return a.submissionCount == b.submissionCount
	case TieBreakerSubmissionTime:
		return a.latestCreated == b.latestCreated
	default: // unset, user_id: score alone decides rank collapsing
		return true
	}
}
