package diagnosis

import (
	"fmt"
	"strings"
)

const (
	UrgencyRoutine = "routine"
	UrgencySoon    = "soon"
	UrgencyUrgent  = "urgent"
)

var urgencyBySeverity = map[string]string{
	"clear":       UrgencyRoutine,
	"mild":        UrgencyRoutine,
	"moderate":    UrgencySoon,
	"severe":      UrgencySoon,
	"very_severe": UrgencyUrgent,
}

// Urgency maps a severity label to how soon a dermatologist should see the
// patient. Unknown labels are routine.
func Urgency(severity string) string {
	if u, ok := urgencyBySeverity[severity]; ok {
		return u
	}
	return UrgencyRoutine
}

// ClinicalNotes renders the free-text summary stored with a diagnosis.
func ClinicalNotes(severity string, counts map[string]int, meta ClinicalMetadata) string {
	total := 0
	for _, n := range counts {
		total += n
	}

	var notes []string
	switch severity {
	case "clear":
		if total == 0 {
			notes = append(notes, "No significant acne lesions detected.")
		} else {
			notes = append(notes, "Minimal acne lesions detected. Skin appears relatively clear.")
		}
	case "mild":
		notes = append(notes, fmt.Sprintf("Mild acne detected with %d total lesions (primarily comedones and papules).", total))
	case "moderate":
		notes = append(notes, fmt.Sprintf("Moderate acne with %d total lesions including papules and pustules.", total))
	case "severe":
		notes = append(notes, fmt.Sprintf("Severe acne with %d total lesions including numerous pustules and nodules.", total))
	case "very_severe":
		notes = append(notes, fmt.Sprintf("Very severe cystic acne with %d total lesions including nodules and cysts. Requires aggressive treatment.", total))
	default:
		notes = append(notes, fmt.Sprintf("Acne severity: %s. Total lesions detected: %d.", severity, total))
	}

	if total > 0 {
		var details []string
		if counts["nodules"] > 0 || counts["cysts"] > 0 {
			details = append(details, "nodular/cystic lesions present")
		}
		if counts["pustules"] > 5 {
			details = append(details, "multiple inflammatory pustules")
		}
		if len(details) > 0 {
			notes = append(notes, "Note: "+strings.Join(details, ", ")+".")
		}
	}

	if meta.AcneDurationMonths > 12 {
		notes = append(notes, "Chronic acne (>12 months) - consider comprehensive treatment plan.")
	}

	return strings.Join(notes, " ")
}
