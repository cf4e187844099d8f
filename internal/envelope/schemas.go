package envelope

import (
	"time"

	"github.com/dimiplan/dimiplan-server/internal/model"
)

// Per-entity schemas. The encrypted field sets mirror the persisted layout:
// users carry name/email/profile_image, folders/planners/rooms their name,
// plans their contents, chat messages their message body.

var Users = Schema[model.User]{
	Owner:     func(u *model.User) *string { return &u.Owner },
	Encrypted: func(u *model.User) []*string { return []*string{&u.Name, &u.Email, &u.ProfileImage} },
	Stamps: func(u *model.User) (*time.Time, *time.Time) {
		return &u.CreatedAt, &u.UpdatedAt
	},
	Upgrade: func(u *model.User) *bool { return &u.NeedsUpgrade },
}

var Folders = Schema[model.Folder]{
	Owner:     func(f *model.Folder) *string { return &f.Owner },
	Encrypted: func(f *model.Folder) []*string { return []*string{&f.Name} },
	Stamps: func(f *model.Folder) (*time.Time, *time.Time) {
		return &f.CreatedAt, &f.UpdatedAt
	},
	Upgrade: func(f *model.Folder) *bool { return &f.NeedsUpgrade },
}

var Planners = Schema[model.Planner]{
	Owner:     func(p *model.Planner) *string { return &p.Owner },
	Encrypted: func(p *model.Planner) []*string { return []*string{&p.Name} },
	Stamps: func(p *model.Planner) (*time.Time, *time.Time) {
		return &p.CreatedAt, &p.UpdatedAt
	},
	Upgrade: func(p *model.Planner) *bool { return &p.NeedsUpgrade },
}

var Plans = Schema[model.Plan]{
	Owner:     func(p *model.Plan) *string { return &p.Owner },
	Encrypted: func(p *model.Plan) []*string { return []*string{&p.Contents} },
	Stamps: func(p *model.Plan) (*time.Time, *time.Time) {
		return &p.CreatedAt, &p.UpdatedAt
	},
	Upgrade: func(p *model.Plan) *bool { return &p.NeedsUpgrade },
}

var Rooms = Schema[model.ChatRoom]{
	Owner:     func(r *model.ChatRoom) *string { return &r.Owner },
	Encrypted: func(r *model.ChatRoom) []*string { return []*string{&r.Name} },
	Stamps: func(r *model.ChatRoom) (*time.Time, *time.Time) {
		return &r.CreatedAt, &r.UpdatedAt
	},
	Upgrade: func(r *model.ChatRoom) *bool { return &r.NeedsUpgrade },
}

var Messages = Schema[model.ChatMessage]{
	Owner:     func(m *model.ChatMessage) *string { return &m.Owner },
	Encrypted: func(m *model.ChatMessage) []*string { return []*string{&m.Message} },
	Stamps: func(m *model.ChatMessage) (*time.Time, *time.Time) {
		return &m.CreatedAt, &m.UpdatedAt
	},
	Upgrade: func(m *model.ChatMessage) *bool { return &m.NeedsUpgrade },
}
