// Package backfill rewrites legacy tables in place: plaintext owner columns
// become opaque hashes and designated payload columns become deterministic
// ciphertext. The rewrite is idempotent; rows are classified by the shape of
// their owner column and by the encrypted-shape check on payload columns, so
// running it twice is a no-op.
package backfill

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/dimiplan/dimiplan-server/internal/crypto"
	"github.com/dimiplan/dimiplan-server/internal/repository/postgres"
)

// table describes one legacy table: its owner column, whether rows carry an
// integer id next to the owner, and which columns the codec covers.
type table struct {
	name    string
	hasID   bool
	encCols []string
}

// Tables are rewritten in this order; no SQL-level FKs exist, so order only
// matters for operator-facing reports.
var tables = []table{
	{name: "users", encCols: []string{"name", "email", "profile_image"}},
	{name: "counters"},
	{name: "folders", hasID: true, encCols: []string{"name"}},
	{name: "planners", hasID: true, encCols: []string{"name"}},
	{name: "plans", hasID: true, encCols: []string{"contents"}},
	{name: "rooms", hasID: true, encCols: []string{"name"}},
	{name: "chats", hasID: true, encCols: []string{"message"}},
}

// Report is the per-table outcome.
type Report struct {
	Table       string
	Scanned     int
	Migrated    int
	AlreadyDone int
	Errored     int
}

// Engine drives the one-shot rewrite.
type Engine struct {
	db     postgres.PgxPool
	keys   *crypto.Keyring
	log    *zap.Logger
	dryRun bool
}

// New constructs an engine. With dryRun set, every table transaction is
// rolled back after classification, so no write ever reaches the database.
func New(db postgres.PgxPool, keys *crypto.Keyring, log *zap.Logger, dryRun bool) *Engine {
	return &Engine{db: db, keys: keys, log: log, dryRun: dryRun}
}

// Run verifies the crypto primitive, then rewrites every table inside its own
// transaction. The returned reports cover all tables even when rows errored;
// the error is non-nil only for operational failures (connection, transaction).
func (e *Engine) Run(ctx context.Context) ([]Report, error) {
	if err := e.selfTest(); err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(tables))
	for _, t := range tables {
		rep, err := e.runTable(ctx, t)
		if err != nil {
			return reports, fmt.Errorf("table %s: %w", t.name, err)
		}
		e.log.Info("table done",
			zap.String("table", rep.Table),
			zap.Int("scanned", rep.Scanned),
			zap.Int("migrated", rep.Migrated),
			zap.Int("alreadyDone", rep.AlreadyDone),
			zap.Int("errored", rep.Errored),
			zap.Bool("dryRun", e.dryRun),
		)
		reports = append(reports, rep)
	}
	return reports, nil
}

// selfTest round-trips the codec and checks the classifier and hash shape
// before any row is touched. A failure here aborts the whole run.
func (e *Engine) selfTest() error {
	const probe = "backfill-self-test"
	ct, err := e.keys.EncryptField(probe, "probe value")
	if err != nil {
		return fmt.Errorf("self-test: %w", err)
	}
	if !crypto.LooksEncrypted(ct) {
		return fmt.Errorf("self-test: codec output fails the encrypted-shape check")
	}
	plain, err := e.keys.DecryptField(probe, ct)
	if err != nil {
		return fmt.Errorf("self-test: %w", err)
	}
	if plain != "probe value" {
		return fmt.Errorf("self-test: round trip mismatch")
	}
	if !crypto.IsOwnerHash(e.keys.HashID(probe)) {
		return fmt.Errorf("self-test: owner hash has unexpected shape")
	}
	return nil
}

// legacyRow is one row read for classification: the stored owner, the
// optional id, and the stored payload column values in table order.
type legacyRow struct {
	owner   string
	id      int64
	payload []string
}

func (e *Engine) runTable(ctx context.Context, t table) (rep Report, err error) {
	rep.Table = t.name

	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return rep, err
	}
	defer func() {
		if e.dryRun || err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = cerr
		}
	}()

	// Read everything first; updates follow on the same connection.
	all, err := readRows(ctx, tx, t)
	if err != nil {
		return rep, err
	}
	rep.Scanned = len(all)

	for _, row := range all {
		switch e.classify(t, row) {
		case rowDone:
			rep.AlreadyDone++
		case rowLegacy:
			if uerr := e.rewrite(ctx, tx, t, row); uerr != nil {
				rep.Errored++
				e.log.Warn("row rewrite failed",
					zap.String("table", t.name),
					zap.Int64("id", row.id),
					zap.Error(uerr),
				)
				continue
			}
			rep.Migrated++
		}
	}
	return rep, nil
}

func readRows(ctx context.Context, tx pgx.Tx, t table) ([]legacyRow, error) {
	cols := []string{"owner"}
	if t.hasID {
		cols = append(cols, "id")
	}
	cols = append(cols, t.encCols...)
	q := fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(cols, ", "), t.name)

	rows, err := tx.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []legacyRow
	for rows.Next() {
		r := legacyRow{payload: make([]string, len(t.encCols))}
		dest := []any{&r.owner}
		if t.hasID {
			dest = append(dest, &r.id)
		}
		for i := range r.payload {
			dest = append(dest, &r.payload[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowClass int

const (
	rowDone rowClass = iota
	rowLegacy
)

// classify treats a 64-hex owner as already migrated: the external id is not
// recoverable from a hash, so payload columns of such rows are left alone.
func (e *Engine) classify(_ table, row legacyRow) rowClass {
	if crypto.IsOwnerHash(row.owner) {
		return rowDone
	}
	return rowLegacy
}

// rewrite hashes the owner and encrypts every payload column that does not
// already look encrypted, updating the row in place. In dry-run mode the
// replacement values are still computed, so codec failures surface in the
// report, but no statement reaches the database.
func (e *Engine) rewrite(ctx context.Context, tx pgx.Tx, t table, row legacyRow) error {
	externalID := row.owner

	set := []string{"owner=$1"}
	args := []any{e.keys.HashID(externalID)}
	for i, col := range t.encCols {
		val := row.payload[i]
		if !crypto.LooksEncrypted(val) {
			ct, err := e.keys.EncryptField(externalID, val)
			if err != nil {
				return err
			}
			val = ct
		}
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}

	var where string
	args = append(args, externalID)
	where = fmt.Sprintf("owner=$%d", len(args))
	if t.hasID {
		args = append(args, row.id)
		where += fmt.Sprintf(" AND id=$%d", len(args))
	}

	if e.dryRun {
		return nil
	}

	q := fmt.Sprintf(`UPDATE %s SET %s WHERE %s`, t.name, strings.Join(set, ", "), where)
	_, err := tx.Exec(ctx, q, args...)
	return err
}
