// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation
	// (e.g., planner or folder name taken within an owner).
	ErrAlreadyExists = errors.New("already exists")

	// ErrOwnerNotInitialized indicates the counter row for an owner is
	// missing, i.e. the user was never provisioned.
	ErrOwnerNotInitialized = errors.New("owner not initialized")
)
