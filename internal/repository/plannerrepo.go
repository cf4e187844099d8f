package repository

import (
	"context"

	"github.com/dimiplan/dimiplan-server/internal/model"
)

// FolderRepository manages the per-user folder tree.
type FolderRepository interface {
	// Create mints a folder id and inserts the folder in one transaction.
	// errs.ErrAlreadyExists when the name is taken within the owner.
	Create(ctx context.Context, externalID string, f *model.Folder) (*model.Folder, error)

	// List returns all folders of the owner ordered by id.
	List(ctx context.Context, externalID string) ([]model.Folder, error)

	// Rename changes the folder name. errs.ErrNotFound / errs.ErrAlreadyExists.
	Rename(ctx context.Context, externalID string, id int64, name string) error

	// Delete removes the folder, its subfolders, and every planner and plan
	// inside the subtree, in one transaction.
	Delete(ctx context.Context, externalID string, id int64) error
}

// PlannerRepository manages planners and their plans.
type PlannerRepository interface {
	// Create mints a planner id and inserts the planner in one transaction.
	// errs.ErrAlreadyExists when the name is taken within the owner.
	Create(ctx context.Context, externalID string, p *model.Planner) (*model.Planner, error)

	// List returns planners of the owner, optionally scoped to a folder
	// (folderID nil = all).
	List(ctx context.Context, externalID string, folderID *int64) ([]model.Planner, error)

	// Rename changes the planner name. errs.ErrNotFound / errs.ErrAlreadyExists.
	Rename(ctx context.Context, externalID string, id int64, name string) error

	// Delete removes the planner and all of its plans in one transaction.
	Delete(ctx context.Context, externalID string, id int64) error
}

// PlanRepository manages individual plans (tasks).
type PlanRepository interface {
	// Create mints a plan id and inserts the plan in one transaction.
	Create(ctx context.Context, externalID string, p *model.Plan) (*model.Plan, error)

	// ListByPlanner returns the plans of one planner ordered by id.
	ListByPlanner(ctx context.Context, externalID string, plannerID int64) ([]model.Plan, error)

	// Update rewrites contents, priority, completion and dates.
	Update(ctx context.Context, externalID string, p *model.Plan) error

	// Delete removes a single plan.
	Delete(ctx context.Context, externalID string, id int64) error
}
