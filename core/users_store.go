package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgUserStore persists User records (spec §3: id, name; never deleted).
type PgUserStore struct {
	db *pgxpool.Pool
}

func NewPgUserStore(db *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{db: db}
}

// EnsureRoot inserts the reserved root user (id 0) if it doesn't already
// exist, matching the teacher's bootstrap-on-startup idiom.
func (s *PgUserStore) EnsureRoot(ctx context.Context) error {
	const q = `INSERT INTO users (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`
	_, err := s.db.Exec(ctx, q, RootUserID, RootUserName)
	return err
}

func (s *PgUserStore) Get(ctx context.Context, id int64) (User, error) {
	const q = `SELECT id, name FROM users WHERE id=$1`
	var u User
	if err := s.db.QueryRow(ctx, q, id).Scan(&u.ID, &u.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, notFound("user %d not found", id)
		}
		return User{}, err
	}
	return u, nil
}

func (s *PgUserStore) GetByName(ctx context.Context, name string) (User, error) {
	const q = `SELECT id, name FROM users WHERE name=$1`
	var u User
	if err := s.db.QueryRow(ctx, q, name).Scan(&u.ID, &u.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, notFound("user %q not found", name)
		}
		return User{}, err
	}
	return u, nil
}

func (s *PgUserStore) Exists(ctx context.Context, id int64) (bool, error) {
	const q = `SELECT 1 FROM users WHERE id=$1`
	var one int
	if err := s.db.QueryRow(ctx, q, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create inserts a new user with a name unique across the table (spec
// §3 invariant). Rename changes the name of an existing user.
func (s *PgUserStore) Create(ctx context.Context, name string) (User, error) {
	const q = `INSERT INTO users (name) VALUES ($1) RETURNING id`
	var id int64
	if err := s.db.QueryRow(ctx, q, name).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return User{}, invalidArgument("user name %q already exists", name)
		}
		return User{}, err
	}
	return User{ID: id, Name: name}, nil
}

// Rename changes an existing user's name, rejecting collisions with
// another user's name.
func (s *PgUserStore) Rename(ctx context.Context, id int64, name string) (User, error) {
	const q = `UPDATE users SET name=$1 WHERE id=$2`
	ct, err := s.db.Exec(ctx, q, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, invalidArgument("user name %q already exists", name)
		}
		return User{}, err
	}
	if ct.RowsAffected() == 0 {
		return User{}, notFound("user %d not found", id)
	}
	return User{ID: id, Name: name}, nil
}

func (s *PgUserStore) List(ctx context.Context) ([]User, error) {
	const q = `SELECT id, name FROM users ORDER BY id`
	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// isUniqueViolation matches Postgres error code 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
