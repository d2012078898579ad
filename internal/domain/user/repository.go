package user

import (
	"context"
)

// Repository defines the user lookups used by the reminder service.
type Repository interface {
	// FirstAdmin returns the earliest admin, or the earliest user of any role when no
	// admin exists.
	FirstAdmin(ctx context.Context) (*User, error)
}
