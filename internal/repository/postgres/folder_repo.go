package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dimiplan/dimiplan-server/internal/crypto"
	"github.com/dimiplan/dimiplan-server/internal/envelope"
	"github.com/dimiplan/dimiplan-server/internal/errs"
	"github.com/dimiplan/dimiplan-server/internal/model"
)

// FolderRepo implements FolderRepository using PostgreSQL.
type FolderRepo struct {
	db  *DB
	env *envelope.Envelope[model.Folder]
}

// NewFolderRepo constructs a folder repository over the shared keyring.
func NewFolderRepo(db *DB, keys *crypto.Keyring) *FolderRepo {
	return &FolderRepo{db: db, env: envelope.New(keys, envelope.Folders)}
}

// Create mints the folder id and inserts the row in one transaction.
func (r *FolderRepo) Create(ctx context.Context, externalID string, f *model.Folder) (out *model.Folder, err error) {
	row, err := r.env.WrapForInsert(externalID, *f)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer finishTx(ctx, tx, &err)

	row.ID, err = nextIDTx(ctx, tx, row.Owner, model.KindFolder, 1)
	if err != nil {
		return nil, err
	}

	const ins = `
INSERT INTO folders (owner, id, name, "from", created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = tx.Exec(ctx, ins, row.Owner, row.ID, row.Name, row.From, row.CreatedAt, row.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			err = errs.ErrAlreadyExists
		}
		return nil, err
	}

	created := *f
	created.Owner = externalID
	created.ID = row.ID
	created.CreatedAt = row.CreatedAt
	created.UpdatedAt = row.UpdatedAt
	return &created, nil
}

// List returns all folders of the owner ordered by id.
func (r *FolderRepo) List(ctx context.Context, externalID string) ([]model.Folder, error) {
	const q = `
SELECT owner, id, name, "from", created_at, updated_at
FROM folders WHERE owner=$1 ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, q, r.env.OwnerHash(externalID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Folder
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.Owner, &f.ID, &f.Name, &f.From, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		rec, err := r.env.UnwrapForRead(externalID, f)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Rename changes the folder name, enforcing per-owner name uniqueness on the
// deterministic ciphertext.
func (r *FolderRepo) Rename(ctx context.Context, externalID string, id int64, name string) error {
	ct, err := r.env.EqualityTerm(externalID, name)
	if err != nil {
		return err
	}

	const q = `UPDATE folders SET name=$3, updated_at=$4 WHERE owner=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, r.env.OwnerHash(externalID), id, ct, r.env.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes the folder subtree: every descendant folder, the planners
// placed in any of them, and those planners' plans. One transaction; a
// failure at any step leaves the whole subtree in place.
func (r *FolderRepo) Delete(ctx context.Context, externalID string, id int64) (err error) {
	owner := r.env.OwnerHash(externalID)

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer finishTx(ctx, tx, &err)

	const subtree = `
WITH RECURSIVE subtree AS (
  SELECT id FROM folders WHERE owner=$1 AND id=$2
  UNION ALL
  SELECT f.id FROM folders f JOIN subtree s ON f.owner=$1 AND f."from"=s.id
)
SELECT id FROM subtree`
	rows, err := tx.Query(ctx, subtree, owner, id)
	if err != nil {
		return err
	}
	var folderIDs []int64
	for rows.Next() {
		var fid int64
		if err = rows.Scan(&fid); err != nil {
			rows.Close()
			return err
		}
		folderIDs = append(folderIDs, fid)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return err
	}
	if len(folderIDs) == 0 {
		err = errs.ErrNotFound
		return err
	}

	const delPlans = `
DELETE FROM plans WHERE owner=$1
AND "from" IN (SELECT id FROM planners WHERE owner=$1 AND "from" = ANY($2))`
	if _, err = tx.Exec(ctx, delPlans, owner, folderIDs); err != nil {
		return err
	}

	const delPlanners = `DELETE FROM planners WHERE owner=$1 AND "from" = ANY($2)`
	if _, err = tx.Exec(ctx, delPlanners, owner, folderIDs); err != nil {
		return err
	}

	const delFolders = `DELETE FROM folders WHERE owner=$1 AND id = ANY($2)`
	_, err = tx.Exec(ctx, delFolders, owner, folderIDs)
	return err
}
