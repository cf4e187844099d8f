package repository

import (
	"context"

	"github.com/dimiplan/dimiplan-server/internal/model"
)

// ChatRepository manages chat rooms and their messages.
type ChatRepository interface {
	// CreateRoom mints a room id and inserts the room in one transaction.
	CreateRoom(ctx context.Context, externalID string, r *model.ChatRoom) (*model.ChatRoom, error)

	// ListRooms returns all rooms of the owner ordered by id.
	ListRooms(ctx context.Context, externalID string) ([]model.ChatRoom, error)

	// SetProcessing flips the room's AI-reply-in-flight flag.
	SetProcessing(ctx context.Context, externalID string, roomID int64, processing bool) error

	// AppendExchange stores a user message and its AI reply with consecutive
	// ids (counter advanced by 2) in one transaction.
	AppendExchange(ctx context.Context, externalID string, roomID int64, userMsg, aiMsg string) (*model.ChatMessage, *model.ChatMessage, error)

	// ListMessages returns the messages of a room ordered by id.
	ListMessages(ctx context.Context, externalID string, roomID int64) ([]model.ChatMessage, error)

	// DeleteRoom removes the room and all of its messages in one transaction.
	DeleteRoom(ctx context.Context, externalID string, roomID int64) error
}
