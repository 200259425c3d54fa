// Package generator drafts prescription content for a diagnosis, either
// from a fixed guideline table or by calling an external LLM service.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/prescription"
)

type guideline struct {
	topical   []prescription.Medication
	oral      []prescription.Medication
	lifestyle []string
	followUp  string
}

func basic(name string) prescription.Medication {
	return prescription.Medication{
		Name:         name,
		Dosage:       "As directed",
		Frequency:    "Daily",
		Duration:     "Ongoing",
		Instructions: "Apply as directed.",
		Warnings:     []string{},
	}
}

var guidelines = map[string]guideline{
	"clear": {
		topical:   []prescription.Medication{basic("Gentle cleanser"), basic("Non-comedogenic moisturizer")},
		lifestyle: []string{"Maintain skincare routine", "Use sunscreen daily"},
		followUp:  "Annual skin check. Return if new lesions appear.",
	},
	"mild": {
		topical: []prescription.Medication{
			{Name: "Benzoyl Peroxide 2.5%", Dosage: "Apply thin layer", Frequency: "Once daily at night", Duration: "8 weeks", Instructions: "Start every other day, increase to daily.", Warnings: []string{"May bleach fabrics"}},
			{Name: "Salicylic Acid 2%", Dosage: "Apply to affected areas", Frequency: "Twice daily", Duration: "8 weeks", Instructions: "Use as cleanser or leave-on.", Warnings: []string{"May cause dryness"}},
		},
		lifestyle: []string{"Gentle cleansing twice daily", "Avoid touching face", "Use non-comedogenic products"},
		followUp:  "Follow up in 8-12 weeks to assess response.",
	},
	"moderate": {
		topical: []prescription.Medication{
			{Name: "Benzoyl Peroxide 5%", Dosage: "Apply thin layer", Frequency: "Once daily at night", Duration: "12 weeks", Instructions: "Apply to affected areas after cleansing.", Warnings: []string{"May bleach fabrics", "Avoid eye area"}},
			{Name: "Adapalene 0.1%", Dosage: "Apply pea-sized amount", Frequency: "Once daily at night", Duration: "12 weeks", Instructions: "Apply 20 min after washing. Expect initial worsening.", Warnings: []string{"Avoid sun exposure", "Not for pregnancy"}},
		},
		lifestyle: []string{"Gentle cleansing twice daily", "Oil-free products", "Change pillowcases frequently", "Reduce dairy intake"},
		followUp:  "Follow up in 6-8 weeks. Contact if severe irritation.",
	},
	"severe": {
		topical: []prescription.Medication{
			{Name: "Benzoyl Peroxide 5%", Dosage: "Apply thin layer", Frequency: "Once daily", Duration: "12 weeks", Instructions: "Apply after cleansing.", Warnings: []string{"May bleach fabrics"}},
			{Name: "Clindamycin 1%", Dosage: "Apply thin layer", Frequency: "Twice daily", Duration: "8 weeks", Instructions: "Use with benzoyl peroxide.", Warnings: []string{"Do not use alone long-term"}},
		},
		oral: []prescription.Medication{
			{Name: "Doxycycline 100mg", Dosage: "100mg", Frequency: "Twice daily", Duration: "3 months", Instructions: "Take with food and water.", Warnings: []string{"Avoid sun", "Not for pregnancy"}},
		},
		lifestyle: []string{"Dermatologist follow-up recommended", "Sun protection critical", "Monitor for side effects"},
		followUp:  "Follow up in 4 weeks. Blood work may be needed.",
	},
	"very_severe": {
		topical: []prescription.Medication{
			{Name: "Benzoyl Peroxide 5%", Dosage: "Apply thin layer", Frequency: "Once daily", Duration: "Ongoing", Instructions: "Supportive therapy.", Warnings: []string{"May bleach fabrics"}},
		},
		oral: []prescription.Medication{
			{Name: "Isotretinoin (Accutane)", Dosage: "As prescribed by specialist", Frequency: "Once daily", Duration: "4-6 months", Instructions: "REQUIRES SPECIALIST. Monthly monitoring.", Warnings: []string{"Severe birth defects", "Liver monitoring required", "Depression risk"}},
		},
		lifestyle: []string{"MANDATORY dermatologist care", "Monthly blood tests", "Pregnancy prevention required", "No waxing or laser"},
		followUp:  "Close monitoring required. Follow up in 2 weeks.",
	},
}

// Rules drafts content from the guideline table. Unknown severities are
// treated as mild. Medications whose name contains a listed allergy are
// left out.
type Rules struct{}

func NewRules() *Rules {
	return &Rules{}
}

func (r *Rules) Generate(ctx context.Context, req prescription.DraftRequest) (*prescription.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, ok := guidelines[req.Severity]
	if !ok {
		g = guidelines["mild"]
	}
	allergies := req.ClinicalMetadata.Allergies

	meds := []prescription.Medication{}
	for _, m := range g.topical {
		if !allergic(m.Name, allergies) {
			meds = append(meds, withType(m, prescription.MedicationTopical))
		}
	}
	for _, m := range g.oral {
		if !allergic(m.Name, allergies) {
			meds = append(meds, withType(m, prescription.MedicationOral))
		}
	}

	total := 0
	for _, n := range req.LesionCounts {
		total += n
	}
	reasoning := fmt.Sprintf("Based on %s acne severity with %d total lesions. Treatment includes %d medication(s) following standard guidelines.",
		strings.ToUpper(req.Severity), total, len(meds))
	if prev := req.ClinicalMetadata.PreviousTreatments; len(prev) > 0 {
		reasoning += fmt.Sprintf(" Previous treatments noted: %s.", strings.Join(prev, ", "))
	}
	if req.Notes != "" {
		reasoning += fmt.Sprintf(" Patient notes: %s.", strings.TrimSuffix(req.Notes, "."))
	}

	followUp := g.followUp
	if !ok {
		followUp = "Follow up in 8 weeks."
	}

	return &prescription.Draft{
		Medications:              meds,
		LifestyleRecommendations: append([]string{}, g.lifestyle...),
		FollowUpInstructions:     followUp,
		Reasoning:                reasoning,
	}, nil
}

func withType(m prescription.Medication, typ string) prescription.Medication {
	m.Type = typ
	m.Warnings = append([]string{}, m.Warnings...)
	return m
}

func allergic(name string, allergies []string) bool {
	lower := strings.ToLower(name)
	for _, a := range allergies {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && strings.Contains(lower, a) {
			return true
		}
	}
	return false
}
