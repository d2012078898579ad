package license

import (
	"context"
)

// Repository defines the read operations the reminder pass needs on licenses.
type Repository interface {
	// ListActive returns every license that has not been soft-deleted, with client and
	// vendor contact details joined in.
	ListActive(ctx context.Context) ([]*License, error)
}
