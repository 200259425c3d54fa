package diagnosis

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Diagnosis) error
	// GetByOwner returns ErrNotFound when the row is missing or belongs to
	// someone else.
	GetByOwner(ctx context.Context, id, userID uuid.UUID) (*Diagnosis, error)
	ListByOwner(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Diagnosis, int, error)
}
