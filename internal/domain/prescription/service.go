package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/diagnosis"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/metrics"
)

const defaultGenerationTimeout = 60 * time.Second

// DiagnosisLookup resolves a diagnosis only for its owner.
type DiagnosisLookup interface {
	Lookup(ctx context.Context, id, ownerID uuid.UUID) (*diagnosis.Diagnosis, error)
}

// Service owns the prescription lifecycle. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	repo       Repository
	diagnoses  DiagnosisLookup
	generator  Generator
	translator Translator
	genTimeout time.Duration
	metrics    *metrics.Collector
	notifier   Notifier
	now        func() time.Time
}

func NewService(repo Repository, diagnoses DiagnosisLookup, gen Generator, tr Translator) *Service {
	return &Service{
		repo:       repo,
		diagnoses:  diagnoses,
		generator:  gen,
		translator: tr,
		genTimeout: defaultGenerationTimeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetGenerationTimeout bounds each generation backend call.
func (s *Service) SetGenerationTimeout(d time.Duration) {
	if d > 0 {
		s.genTimeout = d
	}
}

// SetMetrics attaches an optional collector.
func (s *Service) SetMetrics(m *metrics.Collector) {
	s.metrics = m
}

// SetNotifier attaches an optional listener for lifecycle changes.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) notify(ctx context.Context, p *Prescription) {
	if s.notifier == nil {
		return
	}
	at := p.CreatedAt
	if p.ApprovedAt != nil {
		at = *p.ApprovedAt
	}
	s.notifier.PrescriptionChanged(ctx, Change{
		PrescriptionID: p.ID,
		UserID:         p.UserID,
		Status:         p.Status,
		At:             at,
	})
}

// Generate returns the caller's prescription for diagnosisID, drafting a
// new pending one if none exists yet.
func (s *Service) Generate(ctx context.Context, v Viewer, diagnosisID uuid.UUID, notes string) (View, error) {
	p, err := s.generate(ctx, v.UserID, diagnosisID, notes)
	if err != nil {
		return View{}, err
	}
	return Project(p, v), nil
}

func (s *Service) generate(ctx context.Context, userID, diagnosisID uuid.UUID, notes string) (*Prescription, error) {
	d, err := s.diagnoses.Lookup(ctx, diagnosisID, userID)
	if errors.Is(err, diagnosis.ErrNotFound) {
		return nil, ErrDiagnosisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup diagnosis: %w", err)
	}

	existing, err := s.repo.GetByUserAndDiagnosis(ctx, userID, diagnosisID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup prescription: %w", err)
	}

	// No transaction is held across the backend call.
	draft, err := s.draft(ctx, d, notes)
	if err != nil {
		return nil, err
	}

	p := &Prescription{
		UserID:                   userID,
		DiagnosisID:              diagnosisID,
		Severity:                 d.Severity,
		Medications:              draft.Medications,
		LifestyleRecommendations: draft.LifestyleRecommendations,
		FollowUpInstructions:     draft.FollowUpInstructions,
		Reasoning:                draft.Reasoning,
		Status:                   StatusPending,
	}
	err = s.repo.Create(ctx, p)
	if errors.Is(err, ErrDuplicate) {
		// Lost the race to a concurrent generate; hand back the winner.
		winner, err := s.repo.GetByUserAndDiagnosis(ctx, userID, diagnosisID)
		if err != nil {
			return nil, fmt.Errorf("fetch concurrent prescription: %w", err)
		}
		return winner, nil
	}
	if err != nil {
		return nil, err
	}
	s.notify(ctx, p)
	return p, nil
}

func (s *Service) draft(ctx context.Context, d *diagnosis.Diagnosis, notes string) (*Draft, error) {
	gctx, cancel := context.WithTimeout(ctx, s.genTimeout)
	defer cancel()

	start := time.Now()
	draft, err := s.generator.Generate(gctx, DraftRequest{
		Severity:         d.Severity,
		LesionCounts:     d.LesionCounts,
		AcneType:         d.AcneType,
		ClinicalMetadata: d.Metadata,
		Notes:            strings.TrimSpace(notes),
	})
	if err == nil && draft == nil {
		err = errors.New("empty draft")
	}
	if err == nil {
		err = normalizeDraft(draft)
	}
	if err != nil {
		s.metrics.GenerationFailed(time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	s.metrics.PrescriptionGenerated(d.Severity, time.Since(start))
	return draft, nil
}

// normalizeDraft fills absent fields with empty values and rejects
// medications that cannot be stored.
func normalizeDraft(d *Draft) error {
	if d.Medications == nil {
		d.Medications = []Medication{}
	}
	if d.LifestyleRecommendations == nil {
		d.LifestyleRecommendations = []string{}
	}
	for i := range d.Medications {
		m := &d.Medications[i]
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("medication %d has no name", i)
		}
		m.Type = strings.ToLower(strings.TrimSpace(m.Type))
		if m.Type != MedicationTopical && m.Type != MedicationOral {
			return fmt.Errorf("medication %q has invalid type %q", m.Name, m.Type)
		}
		if m.Warnings == nil {
			m.Warnings = []string{}
		}
	}
	return nil
}

// Approve moves a pending prescription to approved. Notes are optional.
func (s *Service) Approve(ctx context.Context, v Viewer, id uuid.UUID, notes string) (View, error) {
	if !v.Doctor {
		return View{}, ErrForbidden
	}
	var n *string
	if strings.TrimSpace(notes) != "" {
		n = &notes
	}
	p, err := s.transition(ctx, id, StatusUpdate{Status: StatusApproved, DoctorID: v.UserID, Notes: n})
	if err != nil {
		return View{}, err
	}
	return Project(p, v), nil
}

// Reject moves a pending prescription to rejected. Notes are required and
// are checked before anything is written; they are stored as given.
func (s *Service) Reject(ctx context.Context, v Viewer, id uuid.UUID, notes string) (View, error) {
	if !v.Doctor {
		return View{}, ErrForbidden
	}
	if strings.TrimSpace(notes) == "" {
		return View{}, validationError("doctor_notes are required to reject a prescription")
	}
	p, err := s.transition(ctx, id, StatusUpdate{Status: StatusRejected, DoctorID: v.UserID, Notes: &notes})
	if err != nil {
		return View{}, err
	}
	return Project(p, v), nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, u StatusUpdate) (*Prescription, error) {
	u.At = s.now()
	p, ok, err := s.repo.UpdateStatus(ctx, id, u)
	if err != nil {
		return nil, err
	}
	if !ok {
		cur, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &TransitionError{ID: id, Current: cur.Status, Requested: u.Status}
	}
	s.metrics.PrescriptionTransitioned(u.Status)
	s.notify(ctx, p)
	return p, nil
}

// Get returns the projected prescription. Patients get ErrForbidden for
// prescriptions they do not own.
func (s *Service) Get(ctx context.Context, v Viewer, id uuid.UUID) (View, error) {
	p, err := s.read(ctx, v, id)
	if err != nil {
		return View{}, err
	}
	return Project(p, v), nil
}

func (s *Service) read(ctx context.Context, v Viewer, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanRead(p, v) {
		return nil, ErrForbidden
	}
	return p, nil
}

// List returns the viewer's visible prescriptions newest first: patients
// their own, doctors everyone's.
func (s *Service) List(ctx context.Context, v Viewer, status string, limit, offset int) ([]View, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, validationError(fmt.Sprintf("unknown status %q", status))
	}
	f := ListFilter{Status: status}
	if !v.Doctor {
		uid := v.UserID
		f.UserID = &uid
	}
	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return ProjectAll(items, v), total, nil
}

// Translate renders approved content in lang. Content is taken from the
// viewer's projection, so nothing unapproved can be reached this way.
func (s *Service) Translate(ctx context.Context, v Viewer, id uuid.UUID, lang string) (*TranslationResult, error) {
	if !s.translator.Supported(lang) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	p, err := s.read(ctx, v, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusApproved {
		return nil, fmt.Errorf("%w: only approved prescriptions can be translated (status is %s)", ErrForbidden, p.Status)
	}
	view := Project(p, v)
	if view.Detail == nil {
		return nil, ErrForbidden
	}

	tr, err := s.translator.Translate(ctx, view.Medications, view.LifestyleRecommendations, view.FollowUpInstructions, lang)
	if err != nil {
		return nil, err
	}
	return &TranslationResult{
		PrescriptionID:    p.ID,
		OriginalLanguage:  "en",
		TargetLanguage:    lang,
		TranslatedContent: tr,
		TranslatedAt:      s.now(),
	}, nil
}
