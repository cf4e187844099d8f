package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/dimiplan/dimiplan-server/internal/errs"
	"github.com/dimiplan/dimiplan-server/internal/model"
)

func TestPlannerRepo_Create_AllocatesIDInSameTx(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewPlannerRepo(db, keys)
	ctx := context.Background()
	owner := keys.HashID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT planner_id FROM counters WHERE owner=\$1 FOR UPDATE`).
		WithArgs(owner).
		WillReturnRows(pgxmock.NewRows([]string{"planner_id"}).AddRow(int64(4)))
	mock.ExpectExec(`UPDATE counters SET planner_id=\$2`).
		WithArgs(owner, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO planners`).
		WithArgs(owner, int64(4), mustEncrypt(t, keys, "u1", "Math"), pgxmock.AnyArg(), int16(1),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	created, err := r.Create(ctx, "u1", &model.Planner{Owner: "u1", Name: "Math", IsDaily: true})
	require.NoError(t, err)
	require.Equal(t, int64(4), created.ID)
	require.Equal(t, "u1", created.Owner)
	require.Equal(t, "Math", created.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlannerRepo_Create_DuplicateName(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewPlannerRepo(db, keys)
	owner := keys.HashID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT planner_id FROM counters`).
		WithArgs(owner).
		WillReturnRows(pgxmock.NewRows([]string{"planner_id"}).AddRow(int64(5)))
	mock.ExpectExec(`UPDATE counters SET planner_id=\$2`).
		WithArgs(owner, int64(6)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO planners`).
		WithArgs(owner, int64(5), mustEncrypt(t, keys, "u1", "Math"), pgxmock.AnyArg(), int16(0),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := r.Create(context.Background(), "u1", &model.Planner{Owner: "u1", Name: "Math"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlannerRepo_Create_OwnerNotInitialized(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewPlannerRepo(db, keys)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT planner_id FROM counters`).
		WithArgs(keys.HashID("u1")).
		WillReturnRows(pgxmock.NewRows([]string{"planner_id"}))
	mock.ExpectRollback()

	_, err := r.Create(context.Background(), "u1", &model.Planner{Owner: "u1", Name: "Math"})
	require.ErrorIs(t, err, errs.ErrOwnerNotInitialized)
}

func TestPlannerRepo_List_ScopedToFolder(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewPlannerRepo(db, keys)
	owner := keys.HashID("u1")
	now := time.Now().Truncate(time.Second)
	folder := int64(2)

	mock.ExpectQuery(`SELECT owner, id, name, "from", is_daily, created_at, updated_at FROM planners WHERE owner=\$1 AND "from"=\$2`).
		WithArgs(owner, folder).
		WillReturnRows(pgxmock.NewRows(
			[]string{"owner", "id", "name", "from", "is_daily", "created_at", "updated_at"}).
			AddRow(owner, int64(1), mustEncrypt(t, keys, "u1", "Math"), &folder, int16(0), now, now).
			AddRow(owner, int64(2), mustEncrypt(t, keys, "u1", "Daily"), &folder, int16(1), now, now))

	out, err := r.List(context.Background(), "u1", &folder)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Math", out[0].Name)
	require.Equal(t, "u1", out[0].Owner)
	require.True(t, out[1].IsDaily)
}

func TestPlannerRepo_Rename(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewPlannerRepo(db, keys)
	owner := keys.HashID("u1")
	fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	r.env.WithClock(func() time.Time { return fixed })

	mock.ExpectExec(`UPDATE planners SET name=\$3`).
		WithArgs(owner, int64(4), mustEncrypt(t, keys, "u1", "Science"), fixed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Rename(context.Background(), "u1", 4, "Science"))

	mock.ExpectExec(`UPDATE planners SET name=\$3`).
		WithArgs(owner, int64(4), mustEncrypt(t, keys, "u1", "Math"), fixed).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Rename(context.Background(), "u1", 4, "Math"), errs.ErrAlreadyExists)

	mock.ExpectExec(`UPDATE planners SET name=\$3`).
		WithArgs(owner, int64(99), mustEncrypt(t, keys, "u1", "X"), fixed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.Rename(context.Background(), "u1", 99, "X"), errs.ErrNotFound)
}

func TestPlannerRepo_Delete_CascadesPlans(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewPlannerRepo(db, keys)
	owner := keys.HashID("u1")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM plans WHERE owner=\$1 AND "from"=\$2`).
		WithArgs(owner, int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM planners WHERE owner=\$1 AND id=\$2`).
		WithArgs(owner, int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, r.Delete(context.Background(), "u1", 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlannerRepo_Delete_FailureRollsBackWholeCascade(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewPlannerRepo(db, keys)
	owner := keys.HashID("u1")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM plans WHERE owner=\$1 AND "from"=\$2`).
		WithArgs(owner, int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM planners WHERE owner=\$1 AND id=\$2`).
		WithArgs(owner, int64(7)).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	require.Error(t, r.Delete(context.Background(), "u1", 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlannerRepo_Delete_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewPlannerRepo(db, keys)
	owner := keys.HashID("u1")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM plans`).
		WithArgs(owner, int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM planners`).
		WithArgs(owner, int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	require.ErrorIs(t, r.Delete(context.Background(), "u1", 7), errs.ErrNotFound)
}
