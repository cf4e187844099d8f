// Package model defines domain entities used by the envelope and repositories.
package model

import "time"

// Timestamp layouts used at the storage boundary. Timestamps carry the
// process-local zone; dates have no time component.
const (
	TimeLayout = "2006-01-02 15:04:05"
	DateLayout = "2006-01-02"
)

// CounterKind names one of the per-user id allocators.
type CounterKind string

// Counter kinds, one per entity family minted by the counter row.
const (
	KindPlanner CounterKind = "plannerId"
	KindPlan    CounterKind = "planId"
	KindRoom    CounterKind = "roomId"
	KindChat    CounterKind = "chatId"
	KindFolder  CounterKind = "folderId"
)

// Column returns the counter table column backing the kind, or "" for an
// unknown kind.
func (k CounterKind) Column() string {
	switch k {
	case KindPlanner:
		return "planner_id"
	case KindPlan:
		return "plan_id"
	case KindRoom:
		return "room_id"
	case KindChat:
		return "chat_id"
	case KindFolder:
		return "folder_id"
	}
	return ""
}

// Senders of a chat message.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// User is an account row. Owner is the external identifier on the caller
// side and the opaque 64-hex hash at rest; Name, Email and ProfileImage are
// encrypted at rest.
type User struct {
	Owner        string
	Name         string
	Email        string
	ProfileImage string
	Grade        int
	Class        int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NeedsUpgrade bool // set when a legacy plaintext column was read back
}

// Counters is the per-user allocator row. Each field holds the next id to
// mint for its kind.
type Counters struct {
	Owner     string
	PlannerID int64
	PlanID    int64
	RoomID    int64
	ChatID    int64
	FolderID  int64
}

// Folder is a node of the per-user folder tree. From is the parent folder id,
// nil for roots. Name is encrypted at rest and unique per owner.
type Folder struct {
	Owner        string
	ID           int64
	Name         string
	From         *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NeedsUpgrade bool
}

// Planner is a plan collection, optionally placed in a folder via From.
// Name is encrypted at rest and unique per owner.
type Planner struct {
	Owner        string
	ID           int64
	Name         string
	From         *int64
	IsDaily      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NeedsUpgrade bool
}

// Plan is a single task inside a planner. Contents is encrypted at rest.
type Plan struct {
	Owner        string
	ID           int64
	Contents     string
	From         int64 // parent planner id within the same owner
	Priority     int
	IsCompleted  bool
	StartDate    *time.Time
	DueDate      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NeedsUpgrade bool
}

// ChatRoom is an AI conversation container. Name is encrypted at rest.
type ChatRoom struct {
	Owner        string
	ID           int64
	Name         string
	IsProcessing bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NeedsUpgrade bool
}

// ChatMessage is one message of a room. Message is encrypted at rest;
// Sender is SenderUser or SenderAI.
type ChatMessage struct {
	Owner        string
	ID           int64
	Message      string
	From         int64 // parent room id within the same owner
	Sender       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NeedsUpgrade bool
}
