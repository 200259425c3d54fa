package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/diagnosis"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var validStatuses = map[string]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
}

const (
	MedicationTopical = "topical"
	MedicationOral    = "oral"
)

type Medication struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Dosage       string   `json:"dosage"`
	Frequency    string   `json:"frequency"`
	Duration     string   `json:"duration"`
	Instructions string   `json:"instructions"`
	Warnings     []string `json:"warnings"`
}

// Prescription maps to the prescriptions table. Severity is a snapshot of
// the diagnosis at generation time.
type Prescription struct {
	ID                       uuid.UUID
	UserID                   uuid.UUID
	DiagnosisID              uuid.UUID
	Severity                 string
	Medications              []Medication
	LifestyleRecommendations []string
	FollowUpInstructions     string
	Reasoning                string
	Status                   string
	DoctorID                 *uuid.UUID
	DoctorNotes              *string
	ApprovedAt               *time.Time
	CreatedAt                time.Time
}

// DraftRequest is what the generation backend sees of a diagnosis.
type DraftRequest struct {
	Severity         string                     `json:"severity"`
	LesionCounts     map[string]int             `json:"lesion_counts"`
	AcneType         string                     `json:"acne_type,omitempty"`
	ClinicalMetadata diagnosis.ClinicalMetadata `json:"clinical_metadata"`
	Notes            string                     `json:"additional_notes,omitempty"`
}

// Draft is generated treatment content before a doctor has seen it.
type Draft struct {
	Medications              []Medication `json:"medications"`
	LifestyleRecommendations []string     `json:"lifestyle_recommendations"`
	FollowUpInstructions     string       `json:"follow_up_instructions"`
	Reasoning                string       `json:"reasoning"`
}

// Generator produces draft content for a new diagnosis.
type Generator interface {
	Generate(ctx context.Context, req DraftRequest) (*Draft, error)
}

// Translation is approved content rendered in another language.
type Translation struct {
	Medications              []Medication `json:"medications"`
	LifestyleRecommendations []string     `json:"lifestyle_recommendations"`
	FollowUpInstructions     string       `json:"follow_up_instructions"`
	Language                 string       `json:"language"`
	LanguageName             string       `json:"language_name"`
}

type Translator interface {
	Supported(lang string) bool
	Translate(ctx context.Context, meds []Medication, lifestyle []string, followUp, lang string) (*Translation, error)
}

// TranslationResult is the response to a translate request.
type TranslationResult struct {
	PrescriptionID    uuid.UUID    `json:"prescription_id"`
	OriginalLanguage  string       `json:"original_language"`
	TargetLanguage    string       `json:"target_language"`
	TranslatedContent *Translation `json:"translated_content"`
	TranslatedAt      time.Time    `json:"translated_at"`
}

// Change describes a stored lifecycle step: a new pending prescription or
// a review decision. It carries no treatment content.
type Change struct {
	PrescriptionID uuid.UUID `json:"prescription_id"`
	UserID         uuid.UUID `json:"user_id"`
	Status         string    `json:"status"`
	At             time.Time `json:"at"`
}

// Notifier is told about each Change after it is persisted.
type Notifier interface {
	PrescriptionChanged(ctx context.Context, c Change)
}

// StatusUpdate is a single compare-and-set from pending.
type StatusUpdate struct {
	Status   string
	DoctorID uuid.UUID
	Notes    *string
	At       time.Time
}

// ListFilter narrows a list. A nil UserID means every patient.
type ListFilter struct {
	UserID *uuid.UUID
	Status string
}
