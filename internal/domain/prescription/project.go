package prescription

import (
	"time"

	"github.com/google/uuid"

	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/auth"
)

// Viewer is the identity a prescription is projected for.
type Viewer struct {
	UserID uuid.UUID
	Doctor bool
}

func ViewerFromActor(a auth.Actor) Viewer {
	return Viewer{UserID: a.UserID, Doctor: a.IsDoctor()}
}

// View is the only shape in which a prescription leaves this package.
// Detail is nil whenever the viewer may not see the treatment content.
type View struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	DoctorNotes *string   `json:"doctor_notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	*Detail
}

type Detail struct {
	UserID                   uuid.UUID    `json:"user_id"`
	DiagnosisID              uuid.UUID    `json:"diagnosis_id"`
	Severity                 string       `json:"severity"`
	Medications              []Medication `json:"medications"`
	LifestyleRecommendations []string     `json:"lifestyle_recommendations"`
	FollowUpInstructions     string       `json:"follow_up_instructions"`
	Reasoning                string       `json:"reasoning"`
	DoctorID                 *uuid.UUID   `json:"doctor_id"`
	ApprovedAt               *time.Time   `json:"approved_at"`
}

// CanRead reports whether v may read p at all. Doctors read every
// prescription; patients only their own.
func CanRead(p *Prescription, v Viewer) bool {
	return v.Doctor || p.UserID == v.UserID
}

// Project derives what v may see of p:
//
//	patient, pending:  id, status, created_at
//	patient, rejected: id, status, doctor_notes, created_at
//	patient, approved: everything
//	doctor:            everything
//
// Every read path goes through here.
func Project(p *Prescription, v Viewer) View {
	view := View{
		ID:        p.ID,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}

	full := v.Doctor || p.Status == StatusApproved
	if full || p.Status == StatusRejected {
		view.DoctorNotes = copyString(p.DoctorNotes)
	}
	if !full {
		return view
	}

	meds := make([]Medication, len(p.Medications))
	for i, m := range p.Medications {
		m.Warnings = append([]string{}, m.Warnings...)
		meds[i] = m
	}
	view.Detail = &Detail{
		UserID:                   p.UserID,
		DiagnosisID:              p.DiagnosisID,
		Severity:                 p.Severity,
		Medications:              meds,
		LifestyleRecommendations: append([]string{}, p.LifestyleRecommendations...),
		FollowUpInstructions:     p.FollowUpInstructions,
		Reasoning:                p.Reasoning,
		DoctorID:                 copyUUID(p.DoctorID),
		ApprovedAt:               copyTime(p.ApprovedAt),
	}
	return view
}

// ProjectAll keeps order.
func ProjectAll(ps []*Prescription, v Viewer) []View {
	out := make([]View, 0, len(ps))
	for _, p := range ps {
		out = append(out, Project(p, v))
	}
	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
