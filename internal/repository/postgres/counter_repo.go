package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dimiplan/dimiplan-server/internal/crypto"
	"github.com/dimiplan/dimiplan-server/internal/errs"
	"github.com/dimiplan/dimiplan-server/internal/model"
)

// CounterRepo implements CounterRepository against the per-user counter row.
type CounterRepo struct {
	db   *DB
	keys *crypto.Keyring
}

// NewCounterRepo constructs a counter repository.
func NewCounterRepo(db *DB, keys *crypto.Keyring) *CounterRepo {
	return &CounterRepo{db: db, keys: keys}
}

// NextID allocates one id in its own transaction. Creating repositories do
// their allocation through nextIDTx instead, inside the same transaction as
// the insert that consumes the id.
func (r *CounterRepo) NextID(ctx context.Context, externalID string, kind model.CounterKind) (id int64, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer finishTx(ctx, tx, &err)

	return nextIDTx(ctx, tx, r.keys.HashID(externalID), kind, 1)
}

// nextIDTx reads the counter column under a row lock, advances it by step,
// and returns the pre-advance value. The row lock serializes concurrent
// allocations on the same owner; ids are never reused, gaps are allowed.
func nextIDTx(ctx context.Context, tx pgx.Tx, ownerHash string, kind model.CounterKind, step int64) (int64, error) {
	col := kind.Column()
	if col == "" {
		return 0, fmt.Errorf("unknown counter kind %q", kind)
	}

	sel := fmt.Sprintf(`SELECT %s FROM counters WHERE owner=$1 FOR UPDATE`, col)
	var current int64
	if err := tx.QueryRow(ctx, sel, ownerHash).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrOwnerNotInitialized
		}
		return 0, err
	}

	upd := fmt.Sprintf(`UPDATE counters SET %s=$2 WHERE owner=$1`, col)
	if _, err := tx.Exec(ctx, upd, ownerHash, current+step); err != nil {
		return 0, err
	}
	return current, nil
}
