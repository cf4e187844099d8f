package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/dimiplan/dimiplan-server/internal/errs"
	"github.com/dimiplan/dimiplan-server/internal/model"
)

func TestChatRepo_CreateRoom(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewChatRepo(db, keys)
	owner := keys.HashID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT room_id FROM counters WHERE owner=\$1 FOR UPDATE`).
		WithArgs(owner).
		WillReturnRows(pgxmock.NewRows([]string{"room_id"}).AddRow(int64(1)))
	mock.ExpectExec(`UPDATE counters SET room_id=\$2`).
		WithArgs(owner, int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO rooms`).
		WithArgs(owner, int64(1), mustEncrypt(t, keys, "u1", "Study help"), int16(0),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	room, err := r.CreateRoom(context.Background(), "u1", &model.ChatRoom{Owner: "u1", Name: "Study help"})
	require.NoError(t, err)
	require.Equal(t, int64(1), room.ID)
	require.Equal(t, "Study help", room.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepo_AppendExchange_MintsConsecutiveIDs(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewChatRepo(db, keys)
	owner := keys.HashID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM rooms WHERE owner=\$1 AND id=\$2`).
		WithArgs(owner, int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT chat_id FROM counters WHERE owner=\$1 FOR UPDATE`).
		WithArgs(owner).
		WillReturnRows(pgxmock.NewRows([]string{"chat_id"}).AddRow(int64(10)))
	mock.ExpectExec(`UPDATE counters SET chat_id=\$2`).
		WithArgs(owner, int64(12)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO chats`).
		WithArgs(owner, int64(10), mustEncrypt(t, keys, "u1", "What is 2+2?"), int64(3),
			model.SenderUser, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO chats`).
		WithArgs(owner, int64(11), mustEncrypt(t, keys, "u1", "4"), int64(3),
			model.SenderAI, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	userMsg, aiMsg, err := r.AppendExchange(context.Background(), "u1", 3, "What is 2+2?", "4")
	require.NoError(t, err)
	require.Equal(t, int64(10), userMsg.ID)
	require.Equal(t, int64(11), aiMsg.ID)
	require.Equal(t, model.SenderUser, userMsg.Sender)
	require.Equal(t, model.SenderAI, aiMsg.Sender)
	require.Equal(t, "What is 2+2?", userMsg.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepo_AppendExchange_RoomMissing(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewChatRepo(db, keys)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM rooms`).
		WithArgs(keys.HashID("u1"), int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))
	mock.ExpectRollback()

	_, _, err := r.AppendExchange(context.Background(), "u1", 9, "hi", "hello")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestChatRepo_ListMessages(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewChatRepo(db, keys)
	owner := keys.HashID("u1")
	now := time.Now().Truncate(time.Second)

	mock.ExpectQuery(`SELECT owner, id, message, "from", sender, created_at, updated_at FROM chats`).
		WithArgs(owner, int64(3)).
		WillReturnRows(pgxmock.NewRows(
			[]string{"owner", "id", "message", "from", "sender", "created_at", "updated_at"}).
			AddRow(owner, int64(10), mustEncrypt(t, keys, "u1", "What is 2+2?"), int64(3), "user", now, now).
			AddRow(owner, int64(11), mustEncrypt(t, keys, "u1", "4"), int64(3), "ai", now, now))

	out, err := r.ListMessages(context.Background(), "u1", 3)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "What is 2+2?", out[0].Message)
	require.Equal(t, "u1", out[0].Owner)
	require.Equal(t, "ai", out[1].Sender)
}

func TestChatRepo_SetProcessing(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewChatRepo(db, keys)
	owner := keys.HashID("u1")
	fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	r.rooms.WithClock(func() time.Time { return fixed })

	mock.ExpectExec(`UPDATE rooms SET is_processing=\$3`).
		WithArgs(owner, int64(3), int16(1), fixed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetProcessing(context.Background(), "u1", 3, true))

	mock.ExpectExec(`UPDATE rooms SET is_processing=\$3`).
		WithArgs(owner, int64(99), int16(0), fixed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.SetProcessing(context.Background(), "u1", 99, false), errs.ErrNotFound)
}

func TestChatRepo_DeleteRoom_CascadesMessages(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewChatRepo(db, keys)
	owner := keys.HashID("u1")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM chats WHERE owner=\$1 AND "from"=\$2`).
		WithArgs(owner, int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 6))
	mock.ExpectExec(`DELETE FROM rooms WHERE owner=\$1 AND id=\$2`).
		WithArgs(owner, int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, r.DeleteRoom(context.Background(), "u1", 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepo_DeleteRoom_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	keys := newTestKeyring(t)
	r := NewChatRepo(db, keys)
	owner := keys.HashID("u1")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM chats`).
		WithArgs(owner, int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM rooms`).
		WithArgs(owner, int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	require.ErrorIs(t, r.DeleteRoom(context.Background(), "u1", 3), errs.ErrNotFound)
}
