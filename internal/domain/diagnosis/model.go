package diagnosis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("diagnosis not found")
	ErrInvalidMetadata    = errors.New("invalid clinical metadata JSON")
	ErrInvalidImage       = errors.New("file must be an image")
	ErrImageTooLarge      = errors.New("image exceeds maximum upload size")
	ErrClassifierDown     = errors.New("image classifier unavailable")
	ErrClassificationFail = errors.New("image classification failed")
)

// ClinicalMetadata is the questionnaire submitted with an image.
type ClinicalMetadata struct {
	Age                *int     `json:"age,omitempty"`
	SkinType           string   `json:"skin_type"`
	AcneDurationMonths int      `json:"acne_duration_months"`
	PreviousTreatments []string `json:"previous_treatments"`
	Allergies          []string `json:"allergies"`
}

func DefaultMetadata() ClinicalMetadata {
	return ClinicalMetadata{
		SkinType:           "normal",
		AcneDurationMonths: 6,
		PreviousTreatments: []string{},
		Allergies:          []string{},
	}
}

// ParseMetadata decodes the form value sent alongside the image. Absent
// fields keep their defaults; an empty value yields the defaults.
func ParseMetadata(raw string) (ClinicalMetadata, error) {
	m := DefaultMetadata()
	if strings.TrimSpace(raw) == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return ClinicalMetadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if m.Age != nil && (*m.Age < 0 || *m.Age > 130) {
		return ClinicalMetadata{}, fmt.Errorf("%w: age out of range", ErrInvalidMetadata)
	}
	if m.AcneDurationMonths < 0 {
		return ClinicalMetadata{}, fmt.Errorf("%w: negative acne duration", ErrInvalidMetadata)
	}
	if m.SkinType == "" {
		m.SkinType = "normal"
	}
	if m.PreviousTreatments == nil {
		m.PreviousTreatments = []string{}
	}
	if m.Allergies == nil {
		m.Allergies = []string{}
	}
	return m, nil
}

// Diagnosis is one classification of one uploaded image. Rows are never
// updated after insert.
type Diagnosis struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             uuid.UUID          `json:"user_id"`
	Severity           string             `json:"severity"`
	Confidence         float64            `json:"confidence"`
	SeverityScores     map[string]float64 `json:"severity_scores"`
	LesionCounts       map[string]int     `json:"lesion_counts"`
	AcneType           string             `json:"acne_type,omitempty"`
	AffectedAreas      []string           `json:"affected_areas"`
	ClinicalNotes      string             `json:"clinical_notes"`
	RecommendedUrgency string             `json:"recommended_urgency"`
	ImageKey           string             `json:"-"`
	ImageURL           string             `json:"image_url"`
	Metadata           ClinicalMetadata   `json:"metadata"`
	CreatedAt          time.Time          `json:"created_at"`
}

func (d *Diagnosis) TotalLesions() int {
	total := 0
	for _, n := range d.LesionCounts {
		total += n
	}
	return total
}

func imageURL(id uuid.UUID) string {
	return "/api/diagnoses/" + id.String() + "/image"
}
