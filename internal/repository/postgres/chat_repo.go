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

// ChatRepo implements ChatRepository using PostgreSQL.
type ChatRepo struct {
	db    *DB
	rooms *envelope.Envelope[model.ChatRoom]
	msgs  *envelope.Envelope[model.ChatMessage]
}

// NewChatRepo constructs a chat repository over the shared keyring.
func NewChatRepo(db *DB, keys *crypto.Keyring) *ChatRepo {
	return &ChatRepo{
		db:    db,
		rooms: envelope.New(keys, envelope.Rooms),
		msgs:  envelope.New(keys, envelope.Messages),
	}
}

// CreateRoom mints the room id and inserts the row in one transaction.
func (r *ChatRepo) CreateRoom(ctx context.Context, externalID string, room *model.ChatRoom) (out *model.ChatRoom, err error) {
	row, err := r.rooms.WrapForInsert(externalID, *room)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer finishTx(ctx, tx, &err)

	row.ID, err = nextIDTx(ctx, tx, row.Owner, model.KindRoom, 1)
	if err != nil {
		return nil, err
	}

	const ins = `
INSERT INTO rooms (owner, id, name, is_processing, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = tx.Exec(ctx, ins,
		row.Owner, row.ID, row.Name, boolToInt(row.IsProcessing),
		row.CreatedAt, row.UpdatedAt); err != nil {
		return nil, err
	}

	created := *room
	created.Owner = externalID
	created.ID = row.ID
	created.CreatedAt = row.CreatedAt
	created.UpdatedAt = row.UpdatedAt
	return &created, nil
}

// ListRooms returns all rooms of the owner ordered by id.
func (r *ChatRepo) ListRooms(ctx context.Context, externalID string) ([]model.ChatRoom, error) {
	const q = `
SELECT owner, id, name, is_processing, created_at, updated_at
FROM rooms WHERE owner=$1 ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, q, r.rooms.OwnerHash(externalID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChatRoom
	for rows.Next() {
		var (
			room model.ChatRoom
			proc int16
		)
		if err := rows.Scan(&room.Owner, &room.ID, &room.Name, &proc, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		room.IsProcessing = intToBool(proc)
		rec, err := r.rooms.UnwrapForRead(externalID, room)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetProcessing flips the AI-reply-in-flight flag of a room.
func (r *ChatRepo) SetProcessing(ctx context.Context, externalID string, roomID int64, processing bool) error {
	const q = `UPDATE rooms SET is_processing=$3, updated_at=$4 WHERE owner=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q,
		r.rooms.OwnerHash(externalID), roomID, boolToInt(processing), r.rooms.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// AppendExchange stores a user message and its AI reply with consecutive ids.
// The chat counter advances by 2 inside the same transaction as both inserts,
// so concurrent exchanges on one owner can never interleave ids.
func (r *ChatRepo) AppendExchange(ctx context.Context, externalID string, roomID int64, userMsg, aiMsg string) (userOut, aiOut *model.ChatMessage, err error) {
	owner := r.msgs.OwnerHash(externalID)

	userRow, err := r.msgs.WrapForInsert(externalID, model.ChatMessage{
		Owner: externalID, From: roomID, Sender: model.SenderUser, Message: userMsg,
	})
	if err != nil {
		return nil, nil, err
	}
	aiRow, err := r.msgs.WrapForInsert(externalID, model.ChatMessage{
		Owner: externalID, From: roomID, Sender: model.SenderAI, Message: aiMsg,
	})
	if err != nil {
		return nil, nil, err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer finishTx(ctx, tx, &err)

	const room = `SELECT 1 FROM rooms WHERE owner=$1 AND id=$2`
	var one int
	if err = tx.QueryRow(ctx, room, owner, roomID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrNotFound
		}
		return nil, nil, err
	}

	first, err := nextIDTx(ctx, tx, owner, model.KindChat, 2)
	if err != nil {
		return nil, nil, err
	}
	userRow.ID, aiRow.ID = first, first+1

	const ins = `
INSERT INTO chats (owner, id, message, "from", sender, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, row := range []*model.ChatMessage{&userRow, &aiRow} {
		if _, err = tx.Exec(ctx, ins,
			row.Owner, row.ID, row.Message, row.From, row.Sender,
			row.CreatedAt, row.UpdatedAt); err != nil {
			return nil, nil, err
		}
	}

	u := model.ChatMessage{Owner: externalID, ID: userRow.ID, Message: userMsg, From: roomID,
		Sender: model.SenderUser, CreatedAt: userRow.CreatedAt, UpdatedAt: userRow.UpdatedAt}
	a := model.ChatMessage{Owner: externalID, ID: aiRow.ID, Message: aiMsg, From: roomID,
		Sender: model.SenderAI, CreatedAt: aiRow.CreatedAt, UpdatedAt: aiRow.UpdatedAt}
	return &u, &a, nil
}

// ListMessages returns the messages of a room ordered by id.
func (r *ChatRepo) ListMessages(ctx context.Context, externalID string, roomID int64) ([]model.ChatMessage, error) {
	const q = `
SELECT owner, id, message, "from", sender, created_at, updated_at
FROM chats WHERE owner=$1 AND "from"=$2 ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, q, r.msgs.OwnerHash(externalID), roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.Owner, &m.ID, &m.Message, &m.From, &m.Sender, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		rec, err := r.msgs.UnwrapForRead(externalID, m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteRoom removes the room and all of its messages in one transaction.
func (r *ChatRepo) DeleteRoom(ctx context.Context, externalID string, roomID int64) (err error) {
	owner := r.rooms.OwnerHash(externalID)

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer finishTx(ctx, tx, &err)

	const delMsgs = `DELETE FROM chats WHERE owner=$1 AND "from"=$2`
	if _, err = tx.Exec(ctx, delMsgs, owner, roomID); err != nil {
		return err
	}

	const delRoom = `DELETE FROM rooms WHERE owner=$1 AND id=$2`
	tag, err := tx.Exec(ctx, delRoom, owner, roomID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = errs.ErrNotFound
	}
	return err
}
