// Package classifier calls the external image model that grades acne
// severity and estimates lesion counts.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

var (
	ErrUnavailable     = errors.New("classifier unavailable")
	ErrInvalidResponse = errors.New("classifier returned an invalid response")
)

// Severity labels, mildest first.
var SeverityLabels = []string{"clear", "mild", "moderate", "severe", "very_severe"}

var validSeverity = map[string]bool{
	"clear":       true,
	"mild":        true,
	"moderate":    true,
	"severe":      true,
	"very_severe": true,
}

func ValidSeverity(s string) bool {
	return validSeverity[s]
}

// LesionKinds are the lesion counters the model reports.
var LesionKinds = []string{"comedones", "papules", "pustules", "nodules", "cysts"}

// Result is one model run over one image.
type Result struct {
	Severity       string             `json:"severity"`
	Confidence     float64            `json:"confidence"`
	SeverityScores map[string]float64 `json:"all_scores"`
	LesionCounts   map[string]int     `json:"lesion_counts"`
	AffectedAreas  []string           `json:"affected_areas"`
	AcneType       string             `json:"acne_type"`
}

type Classifier interface {
	Classify(ctx context.Context, image []byte, contentType string) (*Result, error)
}

// HTTPClassifier posts the image as multipart form data to
// <baseURL>/classify and decodes a JSON Result.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		url:    strings.TrimRight(baseURL, "/") + "/classify",
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPClassifier) Classify(ctx context.Context, image []byte, contentType string) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="upload"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, fmt.Errorf("build classifier request: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("build classifier request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, &body)
	if err != nil {
		return nil, fmt.Errorf("build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var res Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := res.normalize(); err != nil {
		return nil, err
	}
	return &res, nil
}

// normalize rejects unknown severities and fills absent fields so callers
// never see nil maps.
func (r *Result) normalize() error {
	if !ValidSeverity(r.Severity) {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidResponse, r.Severity)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidResponse, r.Confidence)
	}
	if r.SeverityScores == nil {
		r.SeverityScores = map[string]float64{r.Severity: r.Confidence}
	}
	if r.LesionCounts == nil {
		r.LesionCounts = make(map[string]int, len(LesionKinds))
	}
	for _, k := range LesionKinds {
		if r.LesionCounts[k] < 0 {
			return fmt.Errorf("%w: negative %s count", ErrInvalidResponse, k)
		}
		if _, ok := r.LesionCounts[k]; !ok {
			r.LesionCounts[k] = 0
		}
	}
	if len(r.AffectedAreas) == 0 {
		r.AffectedAreas = []string{"face"}
	}
	return nil
}

// Disabled is used when no classifier endpoint is configured.
type Disabled struct{}

func (Disabled) Classify(context.Context, []byte, string) (*Result, error) {
	return nil, fmt.Errorf("%w: CLASSIFIER_URL is not configured", ErrUnavailable)
}
