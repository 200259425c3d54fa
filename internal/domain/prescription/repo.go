package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts p as a new row. It returns ErrDuplicate when a
	// prescription for (UserID, DiagnosisID) already exists.
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByUserAndDiagnosis(ctx context.Context, userID, diagnosisID uuid.UUID) (*Prescription, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error)
	// UpdateStatus applies u only if the row is still pending. ok is false
	// when no row matched.
	UpdateStatus(ctx context.Context, id uuid.UUID, u StatusUpdate) (p *Prescription, ok bool, err error)
}
