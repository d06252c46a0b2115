package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-neighborfit/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-neighborfit/pkg/utilities"
)

// ErrDuplicateEmail is returned by Create when the email is already taken.
var ErrDuplicateEmail = errors.New("duplicate email")

const uniqueViolation = "23505"

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db  *sqlx.DB
	ids *utilities.IDGenerator
}

func NewUserRepo(db *sqlx.DB, ids *utilities.IDGenerator) *UserRepo {
	return &UserRepo{db: db, ids: ids}
}

type userRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	Email              string         `db:"email"`
	PasswordHash       string         `db:"password_hash"`
	Preferences        []byte         `db:"preferences"`
	SavedNeighborhoods pq.StringArray `db:"saved_neighborhoods"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (row *userRow) toEntity() *entity.User {
	var prefs json.RawMessage
	if len(row.Preferences) > 0 {
		prefs = append(json.RawMessage(nil), row.Preferences...)
	}
	saved := []string(row.SavedNeighborhoods)
	if saved == nil {
		saved = []string{}
	}
	return &entity.User{
		ID:                 row.ID,
		Name:               row.Name,
		Email:              row.Email,
		PasswordHash:       row.PasswordHash,
		Preferences:        prefs,
		SavedNeighborhoods: saved,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email CITEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
  saved_neighborhoods TEXT[] NOT NULL DEFAULT '{}',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create assigns a new ID and inserts u inside a transaction. When confirm is
// non-nil it runs after the insert; the row is committed only if confirm
// returns nil. A unique violation on email yields ErrDuplicateEmail.
func (r *UserRepo) Create(ctx context.Context, u *entity.User, confirm func(*entity.User) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	u.ID = r.ids.Next()
	prefs := []byte(u.Preferences)
	if len(prefs) == 0 {
		prefs = []byte("{}")
	}
	saved := pq.StringArray(u.SavedNeighborhoods)
	if saved == nil {
		saved = pq.StringArray{}
	}

	const q = `INSERT INTO users (id, name, email, password_hash, preferences, saved_neighborhoods)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`
	err = tx.QueryRowxContext(ctx, q, u.ID, u.Name, u.Email, u.PasswordHash, prefs, saved).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		u.ID = ""
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if confirm != nil {
		if err := confirm(u); err != nil {
			u.ID = ""
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		u.ID = ""
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("commit: %w", err)
	}
	u.Preferences = prefs
	u.SavedNeighborhoods = saved
	return nil
}

const selectUser = `SELECT id, name, email, password_hash, preferences, saved_neighborhoods, created_at, updated_at FROM users`

// GetByEmail returns a user matched by email (case-insensitive due to citext) or sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, selectUser+` WHERE email=$1`, email); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// GetByID fetches a full user row or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, selectUser+` WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// UpdatePasswordHash replaces the stored digest, e.g. after a work factor upgrade.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const q = `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, hash)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
