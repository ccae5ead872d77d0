package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgContestStore persists Contest records (spec §3). ProblemIDs and
// UserIDs are stored as JSON arrays in a single column, the same
// serialize-on-write / deserialize-on-read idiom jobs_store.go uses for
// a job's case list.
type PgContestStore struct {
	db *pgxpool.Pool
}

func NewPgContestStore(db *pgxpool.Pool) *PgContestStore {
	return &PgContestStore{db: db}
}

// GlobalSubmissionLimit stands in for "no limit" on contest 0 (spec §3:
// an effectively-infinite per-user submission limit).
const GlobalSubmissionLimit = 1 << 30

// EnsureGlobal inserts the synthetic contest 0, or refreshes the problem
// and user lists of an existing one, so that it contains
// every configured problem and every known user with an
// effectively-infinite submission limit and no time-window restriction
// (spec §3's "implicit global scope when contest_id is omitted"). It is
// called once at startup, after problems and users are already loaded,
// so membership reflects the running configuration.
func (s *PgContestStore) EnsureGlobal(ctx context.Context, problemIDs, userIDs []int64) error {
	problemIDsJSON, err := json.Marshal(problemIDs)
	if err != nil {
		return err
	}
	userIDsJSON, err := json.Marshal(userIDs)
	if err != nil {
		return err
	}
	const q = `INSERT INTO contest (id, name, from_time, to_time, problem_ids, user_ids, submission_limit)
		VALUES ($1, 'Global', $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET problem_ids = EXCLUDED.problem_ids, user_ids = EXCLUDED.user_ids`
	// A contest spanning all representable time means the from/to window
	// check in intake.go never rejects a global-scope submission.
	zero := time.Unix(0, 0).UTC()
	forever := time.Unix(1<<62, 0).UTC()
	_, err = s.db.Exec(ctx, q, GlobalContestID, zero, forever, problemIDsJSON, userIDsJSON, GlobalSubmissionLimit)
	return err
}

func (s *PgContestStore) Get(ctx context.Context, id int64) (Contest, error) {
	const q = `SELECT id, name, from_time, to_time, problem_ids, user_ids, submission_limit FROM contest WHERE id=$1`
	return s.scanOne(s.db.QueryRow(ctx, q, id))
}

func (s *PgContestStore) scanOne(row pgx.Row) (Contest, error) {
	var c Contest
	var problemIDsJSON, userIDsJSON []byte
	if err := row.Scan(&c.ID, &c.Name, &c.From, &c.To, &problemIDsJSON, &userIDsJSON, &c.SubmissionLimit); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contest{}, notFound("contest not found")
		}
		return Contest{}, err
	}
	if err := json.Unmarshal(problemIDsJSON, &c.ProblemIDs); err != nil {
		return Contest{}, err
	}
	if err := json.Unmarshal(userIDsJSON, &c.UserIDs); err != nil {
		return Contest{}, err
	}
	return c, nil
}

func (s *PgContestStore) Exists(ctx context.Context, id int64) (bool, error) {
	if id == GlobalContestID {
		return true, nil
	}
	const q = `SELECT 1 FROM contest WHERE id=$1`
	var one int
	if err := s.db.QueryRow(ctx, q, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *PgContestStore) Create(ctx context.Context, c Contest) (Contest, error) {
	problemIDsJSON, err := json.Marshal(c.ProblemIDs)
	if err != nil {
		return Contest{}, err
	}
	userIDsJSON, err := json.Marshal(c.UserIDs)
	if err != nil {
		return Contest{}, err
	}
	const q = `INSERT INTO contest (name, from_time, to_time, problem_ids, user_ids, submission_limit)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`
	if err := s.db.QueryRow(ctx, q, c.Name, c.From, c.To, problemIDsJSON, userIDsJSON, c.SubmissionLimit).Scan(&c.ID); err != nil {
		return Contest{}, err
	}
	return c, nil
}

// Update overwrites an existing contest's mutable fields by id.
func (s *PgContestStore) Update(ctx context.Context, c Contest) (Contest, error) {
	problemIDsJSON, err := json.Marshal(c.ProblemIDs)
	if err != nil {
		return Contest{}, err
	}
	userIDsJSON, err := json.Marshal(c.UserIDs)
	if err != nil {
		return Contest{}, err
	}
	const q = `UPDATE contest SET name=$2, from_time=$3, to_time=$4, problem_ids=$5, user_ids=$6, submission_limit=$7 WHERE id=$1`
	ct, err := s.db.Exec(ctx, q, c.ID, c.Name, c.From, c.To, problemIDsJSON, userIDsJSON, c.SubmissionLimit)
	if err != nil {
		return Contest{}, err
	}
	if ct.RowsAffected() == 0 {
		return Contest{}, notFound("contest %d not found", c.ID)
	}
	return c, nil
}

func (s *PgContestStore) List(ctx context.Context) ([]Contest, error) {
	const q = `SELECT id, name, from_time, to_time, problem_ids, user_ids, submission_limit FROM contest WHERE id != $1 ORDER BY id`
	rows, err := s.db.Query(ctx, q, GlobalContestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contest
	for rows.Next() {
		c, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
