package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/prescription"
)

var ErrBadResponse = errors.New("generation service returned an unusable response")

// LLM posts the draft request to a generation service and decodes the
// drafted content. Fields the service leaves out come back empty.
type LLM struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewLLM(url, apiKey, model string, timeout time.Duration) *LLM {
	return &LLM{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

type llmRequest struct {
	Model   string                    `json:"model,omitempty"`
	Request prescription.DraftRequest `json:"request"`
}

func (l *LLM) Generate(ctx context.Context, req prescription.DraftRequest) (*prescription.Draft, error) {
	body, err := json.Marshal(llmRequest{Model: l.model, Request: req})
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if l.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call generation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generation service status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var draft prescription.Draft
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&draft); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if draft.Medications == nil {
		draft.Medications = []prescription.Medication{}
	}
	if draft.LifestyleRecommendations == nil {
		draft.LifestyleRecommendations = []string{}
	}
	for i := range draft.Medications {
		if draft.Medications[i].Warnings == nil {
			draft.Medications[i].Warnings = []string{}
		}
	}
	return &draft, nil
}
