package reminder

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads and writes reminders. Every lookup by id is scoped to
// the owning user.
type Repository interface {
	Create(ctx context.Context, r *Reminder) error
	GetByOwner(ctx context.Context, id, userID uuid.UUID) (*Reminder, error)
	ListByOwner(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Reminder, int, error)
	ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*Reminder, error)
	// Acknowledge increments the counter in place and returns the new total.
	Acknowledge(ctx context.Context, id, userID uuid.UUID) (int, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}
