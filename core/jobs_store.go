package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// jobIDLockKey is the pg_advisory_xact_lock key used to serialize job id
// assignment, matching the read-then-insert id allocation spec §9's
// design notes call for (grounded on the teacher's AcquirePending
// transaction pattern in submission_repository.go).
const jobIDLockKey = 874512

// JobFilter is the composite predicate C5's list operation accepts.
// Zero values mean "no constraint" on that field.
type JobFilter struct {
	UserID    *int64
	ContestID *int64
	ProblemID *int64
	Language  string
	State     JobState
	Result    Verdict
	From      *time.Time
	To        *time.Time
}

// PgJobStore persists Job records to the `task` table. It implements
// JobStore for C3 and the broader query surface C4/C5/C6 need.
type PgJobStore struct {
	db *pgxpool.Pool
}

func NewPgJobStore(db *pgxpool.Pool) *PgJobStore {
	return &PgJobStore{db: db}
}

// Create assigns the job a dense, ascending id and inserts its initial
// record inside one transaction, holding an advisory lock so concurrent
// submissions can't race the MAX(id)+1 read (spec §9).
func (s *PgJobStore) Create(ctx context.Context, job *Job) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, jobIDLockKey); err != nil {
		return err
	}

	var nextID int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(id), -1) + 1 FROM task`).Scan(&nextID); err != nil {
		return err
	}
	job.ID = nextID
	job.CreatedTime = time.Now()
	job.UpdatedTime = job.CreatedTime

	casesJSON, err := json.Marshal(job.Cases)
	if err != nil {
		return err
	}

	const q = `INSERT INTO task
		(id, created_time, updated_time, user_id, contest_id, problem_id, language, source_code, state, result, score, cases)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	if _, err := tx.Exec(ctx, q,
		job.ID, job.CreatedTime, job.UpdatedTime,
		job.Submission.UserID, job.Submission.ContestID, job.Submission.ProblemID,
		job.Submission.Language, job.Submission.SourceCode,
		job.State, job.Result, job.Score, casesJSON,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Save persists the current state of job, overwriting its mutable
// columns (updated_time, state, result, score, cases).
// Used by C3's executor after every transition and by C5's retest.
func (s *PgJobStore) Save(ctx context.Context, job *Job) error {
	casesJSON, err := json.Marshal(job.Cases)
	if err != nil {
		return err
	}
	const q = `UPDATE task SET updated_time=$2, state=$3, result=$4, score=$5, cases=$6 WHERE id=$1`
	ct, err := s.db.Exec(ctx, q, job.ID, job.UpdatedTime, job.State, job.Result, job.Score, casesJSON)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return notFound("job %d not found", job.ID)
	}
	return nil
}

// Get loads a single job by id.
func (s *PgJobStore) Get(ctx context.Context, id int64) (Job, error) {
	const q = `SELECT id, created_time, updated_time, user_id, contest_id, problem_id, language, source_code, state, result, score, cases
		FROM task WHERE id=$1`
	return s.scanOne(s.db.QueryRow(ctx, q, id))
}

func (s *PgJobStore) scanOne(row pgx.Row) (Job, error) {
	var job Job
	var casesJSON []byte
	if err := row.Scan(
		&job.ID, &job.CreatedTime, &job.UpdatedTime,
		&job.Submission.UserID, &job.Submission.ContestID, &job.Submission.ProblemID,
		&job.Submission.Language, &job.Submission.SourceCode,
		&job.State, &job.Result, &job.Score, &casesJSON,
	); err != nil {
		if err == pgx.ErrNoRows {
			return Job{}, notFound("job not found")
		}
		return Job{}, err
	}
	if err := json.Unmarshal(casesJSON, &job.Cases); err != nil {
		return Job{}, err
	}
	return job, nil
}

// List returns jobs matching filter, sorted by created_time ascending
// (spec §5), along with the total count ignoring pagination.
func (s *PgJobStore) List(ctx context.Context, filter JobFilter, offset, limit int) ([]Job, int, error) {
	where, args := buildJobWhere(filter)

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM task %s`, where)
	var total int
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limitArg := len(args) + 1
	offsetArg := len(args) + 2
	query := fmt.Sprintf(`SELECT id, created_time, updated_time, user_id, contest_id, problem_id, language, source_code, state, result, score, cases
		FROM task %s ORDER BY created_time ASC LIMIT $%d OFFSET $%d`, where, limitArg, offsetArg)

	rows, err := s.db.Query(ctx, query, append(append([]interface{}{}, args...), limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := s.scanOne(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// ListAll returns every job matching filter, unpaginated, for ranking
// aggregation (C6) which needs the full result set.
func (s *PgJobStore) ListAll(ctx context.Context, filter JobFilter) ([]Job, error) {
	where, args := buildJobWhere(filter)
	query := fmt.Sprintf(`SELECT id, created_time, updated_time, user_id, contest_id, problem_id, language, source_code, state, result, score, cases
		FROM task %s ORDER BY created_time ASC`, where)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountByUserAndContest is used by C4's rate-limit check (spec §4.4).
func (s *PgJobStore) CountByUserAndContest(ctx context.Context, userID, contestID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM task WHERE user_id=$1 AND contest_id=$2`
	var c int
	if err := s.db.QueryRow(ctx, q, userID, contestID).Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

func buildJobWhere(f JobFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.UserID != nil {
		add("user_id=$%d", *f.UserID)
	}
	if f.ContestID != nil {
		add("contest_id=$%d", *f.ContestID)
	}
	if f.ProblemID != nil {
		add("problem_id=$%d", *f.ProblemID)
	}
	if f.Language != "" {
		add("language=$%d", f.Language)
	}
	if f.State != "" {
		add("state=$%d", f.State)
	}
	if f.Result != "" {
		add("result=$%d", f.Result)
	}
	if f.From != nil {
		add("created_time>=$%d", *f.From)
	}
	if f.To != nil {
		add("created_time<=$%d", *f.To)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
