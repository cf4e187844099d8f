package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dimiplan/dimiplan-server/internal/crypto"
	"github.com/dimiplan/dimiplan-server/internal/envelope"
	"github.com/dimiplan/dimiplan-server/internal/errs"
	"github.com/dimiplan/dimiplan-server/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct {
	db  *DB
	env *envelope.Envelope[model.User]
}

// NewUserRepo constructs a user repository over the shared keyring.
func NewUserRepo(db *DB, keys *crypto.Keyring) *UserRepo {
	return &UserRepo{db: db, env: envelope.New(keys, envelope.Users)}
}

// Create inserts the user row and its counter row in one transaction, so a
// provisioned user can never lack counters. All five counters start at 1.
func (r *UserRepo) Create(ctx context.Context, externalID string, u *model.User) (err error) {
	row, err := r.env.WrapForInsert(externalID, *u)
	if err != nil {
		return err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer finishTx(ctx, tx, &err)

	const insUser = `
INSERT INTO users (owner, name, email, profile_image, grade, class, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = tx.Exec(ctx, insUser,
		row.Owner, row.Name, row.Email, row.ProfileImage,
		row.Grade, row.Class, row.CreatedAt, row.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			err = errs.ErrAlreadyExists
		}
		return err
	}

	const insCounters = `
INSERT INTO counters (owner, planner_id, plan_id, room_id, chat_id, folder_id)
VALUES ($1, 1, 1, 1, 1, 1)`
	_, err = tx.Exec(ctx, insCounters, row.Owner)
	return err
}

// Get loads the account by external identifier.
func (r *UserRepo) Get(ctx context.Context, externalID string) (*model.User, error) {
	const q = `
SELECT owner, name, email, profile_image, grade, class, created_at, updated_at
FROM users WHERE owner=$1`
	var row model.User
	err := r.db.Pool.QueryRow(ctx, q, r.env.OwnerHash(externalID)).Scan(
		&row.Owner, &row.Name, &row.Email, &row.ProfileImage,
		&row.Grade, &row.Class, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	out, err := r.env.UnwrapForRead(externalID, row)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Update rewrites the mutable profile fields and bumps updated_at.
func (r *UserRepo) Update(ctx context.Context, externalID string, u *model.User) error {
	row, err := r.env.WrapForInsert(externalID, *u)
	if err != nil {
		return err
	}

	const q = `
UPDATE users SET name=$2, email=$3, profile_image=$4, grade=$5, class=$6, updated_at=$7
WHERE owner=$1`
	tag, err := r.db.Pool.Exec(ctx, q,
		row.Owner, row.Name, row.Email, row.ProfileImage,
		row.Grade, row.Class, r.env.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
