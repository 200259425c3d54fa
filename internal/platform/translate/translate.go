// Package translate renders approved prescription content in a patient's
// language using a fixed glossary of medical terms.
package translate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/prescription"
)

const (
	English = "en"
	Telugu  = "te"
)

var languageNames = map[string]string{
	English: "English",
	Telugu:  "తెలుగు",
}

var teluguTerms = map[string]string{
	"apply":          "రాయండి",
	"take":           "తీసుకోండి",
	"daily":          "రోజూ",
	"twice daily":    "రోజుకు రెండుసార్లు",
	"once daily":     "రోజుకు ఒకసారి",
	"at night":       "రాత్రి",
	"morning":        "ఉదయం",
	"with food":      "ఆహారంతో",
	"weeks":          "వారాలు",
	"months":         "నెలలు",
	"thin layer":     "పలుచని పొర",
	"affected areas": "ప్రభావిత ప్రాంతాలు",
	"cleansing":      "శుభ్రం చేయడం",
	"avoid sun":      "ఎండలో వెళ్ళకండి",
	"sunscreen":      "సన్‌స్క్రీన్",
	"moisturizer":    "మాయిశ్చరైజర్",
	"medication":     "మందు",
	"dosage":         "మోతాదు",
	"warnings":       "హెచ్చరికలు",
	"follow-up":      "అనుసరణ",
}

var teluguTypes = map[string]string{
	prescription.MedicationTopical: "టాపికల్",
	prescription.MedicationOral:    "ఓరల్",
}

// Dictionary translates by phrase replacement on lowercased text. Longer
// phrases win over the words they contain. Medicine names stay in English.
type Dictionary struct {
	te *strings.Replacer
}

func NewDictionary() *Dictionary {
	return &Dictionary{te: newReplacer(teluguTerms)}
}

func newReplacer(terms map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(terms))
	for k := range terms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, terms[k])
	}
	return strings.NewReplacer(pairs...)
}

// Supported reports whether lang is a known target language.
func (d *Dictionary) Supported(lang string) bool {
	_, ok := languageNames[lang]
	return ok
}

func (d *Dictionary) Translate(ctx context.Context, meds []prescription.Medication, lifestyle []string, followUp, lang string) (*prescription.Translation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, ok := languageNames[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", prescription.ErrUnsupportedLanguage, lang)
	}

	out := &prescription.Translation{
		Medications:              make([]prescription.Medication, 0, len(meds)),
		LifestyleRecommendations: make([]string, 0, len(lifestyle)),
		Language:                 lang,
		LanguageName:             name,
	}
	if lang == English {
		for _, m := range meds {
			m.Warnings = append([]string{}, m.Warnings...)
			out.Medications = append(out.Medications, m)
		}
		out.LifestyleRecommendations = append(out.LifestyleRecommendations, lifestyle...)
		out.FollowUpInstructions = followUp
		return out, nil
	}

	for _, m := range meds {
		t := prescription.Medication{
			Name:         m.Name,
			Type:         teluguTypes[m.Type],
			Dosage:       d.text(m.Dosage),
			Frequency:    d.text(m.Frequency),
			Duration:     d.text(m.Duration),
			Instructions: d.text(m.Instructions),
			Warnings:     make([]string, 0, len(m.Warnings)),
		}
		if t.Type == "" {
			t.Type = m.Type
		}
		for _, w := range m.Warnings {
			t.Warnings = append(t.Warnings, d.text(w))
		}
		out.Medications = append(out.Medications, t)
	}
	for _, r := range lifestyle {
		out.LifestyleRecommendations = append(out.LifestyleRecommendations, d.text(r))
	}
	out.FollowUpInstructions = d.text(followUp)
	return out, nil
}

func (d *Dictionary) text(s string) string {
	return d.te.Replace(strings.ToLower(s))
}
