package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/prescription"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/metrics"
)

const maxTimesPerDay = 6

// PrescriptionReader returns the caller's projected view of a
// prescription, so reminders only ever see what the caller may see.
type PrescriptionReader interface {
	Get(ctx context.Context, v prescription.Viewer, id uuid.UUID) (prescription.View, error)
}

// TxRunner runs fn in a single database transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo          Repository
	prescriptions PrescriptionReader
	inTx          TxRunner
	metrics       *metrics.Collector
	now           func() time.Time
}

func NewService(repo Repository, prescriptions PrescriptionReader, inTx TxRunner) *Service {
	return &Service{repo: repo, prescriptions: prescriptions, inTx: inTx, now: time.Now}
}

func (s *Service) SetMetrics(m *metrics.Collector) {
	s.metrics = m
}

// AutoSchedule creates one reminder per medication of an approved
// prescription the caller owns. Scheduling twice returns the reminders
// created the first time.
func (s *Service) AutoSchedule(ctx context.Context, v prescription.Viewer, prescriptionID uuid.UUID) (*ScheduleResult, error) {
	meds, err := s.approvedMedications(ctx, v, prescriptionID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByPrescription(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &ScheduleResult{PrescriptionID: prescriptionID, Reminders: existing}, nil
	}

	var created []*Reminder
	err = s.inTx(ctx, func(ctx context.Context) error {
		created = created[:0]
		for i, m := range meds {
			rm := fromMedication(v.UserID, prescriptionID, i, m)
			if err := s.repo.Create(ctx, rm); err != nil {
				return err
			}
			created = append(created, rm)
		}
		return nil
	})
	if errors.Is(err, ErrDuplicate) {
		// A concurrent call scheduled first.
		existing, err := s.repo.ListByPrescription(ctx, prescriptionID)
		if err != nil {
			return nil, err
		}
		return &ScheduleResult{PrescriptionID: prescriptionID, Reminders: existing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("schedule reminders: %w", err)
	}

	s.metrics.RemindersScheduled(len(created))
	if created == nil {
		created = []*Reminder{}
	}
	return &ScheduleResult{PrescriptionID: prescriptionID, RemindersCreated: len(created), Reminders: created}, nil
}

func (s *Service) approvedMedications(ctx context.Context, v prescription.Viewer, id uuid.UUID) ([]prescription.Medication, error) {
	view, err := s.prescriptions.Get(ctx, v, id)
	if err != nil {
		return nil, err
	}
	if view.Status != prescription.StatusApproved {
		return nil, fmt.Errorf("%w: status is %s", ErrNotApproved, view.Status)
	}
	if view.Detail == nil {
		return nil, ErrForbidden
	}
	if view.UserID != v.UserID {
		return nil, fmt.Errorf("%w: reminders can only be scheduled by the patient", ErrForbidden)
	}
	return view.Medications, nil
}

func fromMedication(userID, prescriptionID uuid.UUID, index int, m prescription.Medication) *Reminder {
	freq, times := Derive(m.Frequency)
	idx := index
	pid := prescriptionID
	return &Reminder{
		UserID:          userID,
		PrescriptionID:  &pid,
		MedicationIndex: &idx,
		Title:           "Medication: " + m.Name,
		Message:         strings.TrimSpace(fmt.Sprintf("Time to apply/take %s. %s", m.Name, m.Instructions)),
		Frequency:       freq,
		Times:           times,
		Status:          StatusActive,
	}
}

// Create adds a manual reminder. A linked prescription must belong to the
// caller.
func (s *Service) Create(ctx context.Context, v prescription.Viewer, in CreateInput) (*Reminder, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	if in.PrescriptionID != nil {
		view, err := s.prescriptions.Get(ctx, v, *in.PrescriptionID)
		if err != nil {
			return nil, err
		}
		if view.Detail != nil && view.UserID != v.UserID {
			return nil, fmt.Errorf("%w: prescription belongs to another patient", ErrForbidden)
		}
	}

	rm := &Reminder{
		UserID:         v.UserID,
		PrescriptionID: in.PrescriptionID,
		Title:          strings.TrimSpace(in.Title),
		Message:        strings.TrimSpace(in.Message),
		MessageTelugu:  in.MessageTelugu,
		Frequency:      in.Frequency,
		Times:          append([]string{}, in.Times...),
		Status:         StatusActive,
	}
	if err := s.repo.Create(ctx, rm); err != nil {
		return nil, err
	}
	return rm, nil
}

func validate(in CreateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(in.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if !validFrequencies[in.Frequency] {
		return fmt.Errorf("%w: frequency must be one of once_daily, twice_daily, three_times_daily", ErrValidation)
	}
	if len(in.Times) == 0 || len(in.Times) > maxTimesPerDay {
		return fmt.Errorf("%w: between 1 and %d times are required", ErrValidation, maxTimesPerDay)
	}
	for _, t := range in.Times {
		if !validTime(t) {
			return fmt.Errorf("%w: time %q must be HH:MM", ErrValidation, t)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, v prescription.Viewer, id uuid.UUID) (*Reminder, error) {
	return s.repo.GetByOwner(ctx, id, v.UserID)
}

func (s *Service) List(ctx context.Context, v prescription.Viewer, limit, offset int) ([]*Reminder, int, error) {
	return s.repo.ListByOwner(ctx, v.UserID, limit, offset)
}

func (s *Service) Acknowledge(ctx context.Context, v prescription.Viewer, id uuid.UUID) (*Acknowledgement, error) {
	total, err := s.repo.Acknowledge(ctx, id, v.UserID)
	if err != nil {
		return nil, err
	}
	return &Acknowledgement{ReminderID: id, AcknowledgedAt: s.now(), TotalAcknowledged: total}, nil
}

func (s *Service) Delete(ctx context.Context, v prescription.Viewer, id uuid.UUID) error {
	return s.repo.Delete(ctx, id, v.UserID)
}
