// Package repository defines storage interfaces implemented by concrete backends.
// All operations receive the external user identifier from the authenticated
// session; the opaque owner hash never crosses these interfaces.
package repository

import (
	"context"

	"github.com/dimiplan/dimiplan-server/internal/model"
)

// UserRepository provides account access keyed by external identifier.
type UserRepository interface {
	// Create inserts the user row and its counter row (all counters at 1)
	// in one transaction. First-login provisioning path.
	Create(ctx context.Context, externalID string, u *model.User) error

	// Get loads the account, or errs.ErrNotFound.
	Get(ctx context.Context, externalID string) (*model.User, error)

	// Update rewrites the mutable profile fields.
	Update(ctx context.Context, externalID string, u *model.User) error
}

// CounterRepository allocates per-user monotonic ids.
type CounterRepository interface {
	// NextID returns the current counter value for the kind and advances it
	// by one, in a single transaction. errs.ErrOwnerNotInitialized when the
	// counter row is absent. Gaps are allowed; duplicates are not.
	NextID(ctx context.Context, externalID string, kind model.CounterKind) (int64, error)
}
