package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/auth"
)

type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, path string, opts ...func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withAuth(userID string, roles ...string) func(*http.Request) {
	return func(req *http.Request) {
		*req = *req.WithContext(auth.WithIdentity(req.Context(), userID, roles...))
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_PrescriptionActions(t *testing.T) {
	id := uuid.NewString()
	doctor := uuid.NewString()

	tests := []struct {
		name       string
		method     string
		path       string
		resource   string
		resourceID string
		action     string
	}{
		{"read", http.MethodGet, "/api/prescriptions/" + id, "prescriptions", id, "read"},
		{"list", http.MethodGet, "/api/prescriptions", "prescriptions", "", "search"},
		{"approve", http.MethodPost, "/api/prescriptions/" + id + "/approve", "prescriptions", id, "approve"},
		{"reject", http.MethodPost, "/api/prescriptions/" + id + "/reject", "prescriptions", id, "reject"},
		{"generate", http.MethodPost, "/api/prescriptions/generate", "prescriptions", "", "generate"},
		{"auto schedule", http.MethodPost, "/api/reminders/auto-schedule/" + id, "reminders", id, "auto-schedule"},
		{"delete reminder", http.MethodDelete, "/api/reminders/" + id, "reminders", id, "delete"},
		{"analyze", http.MethodPost, "/api/diagnoses/analyze", "diagnoses", "", "analyze"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecorder{}
			c, _ := newTestContext(tt.method, tt.path, withAuth(doctor, auth.RoleDoctor))
			c.Set("request_id", "req-1")

			if err := Audit(zerolog.New(os.Stderr), rec)(okHandler)(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.count() != 1 {
				t.Fatalf("expected 1 entry, got %d", rec.count())
			}
			got := rec.last()
			if got.Resource != tt.resource {
				t.Errorf("resource: expected %q, got %q", tt.resource, got.Resource)
			}
			if got.ResourceID != tt.resourceID {
				t.Errorf("resource id: expected %q, got %q", tt.resourceID, got.ResourceID)
			}
			if got.Action != tt.action {
				t.Errorf("action: expected %q, got %q", tt.action, got.Action)
			}
			if got.UserID != doctor {
				t.Errorf("expected user %s, got %s", doctor, got.UserID)
			}
			if got.RequestID != "req-1" {
				t.Errorf("expected request id req-1, got %s", got.RequestID)
			}
			if got.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", got.StatusCode)
			}
		})
	}
}

func TestAudit_SkipsNonPatientPaths(t *testing.T) {
	for _, path := range []string{"/health", "/metrics", "/api/auth/login", "/api/auth/me"} {
		rec := &mockRecorder{}
		c, _ := newTestContext(http.MethodGet, path)
		if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", path, err)
		}
		if rec.count() != 0 {
			t.Errorf("%s: expected no audit entry", path)
		}
	}
}

func TestAudit_RecordsHandlerErrorStatus(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodPost, "/api/prescriptions/"+uuid.NewString()+"/approve", withAuth(uuid.NewString(), auth.RolePatient))

	h := Audit(zerolog.Nop(), rec)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "required role: doctor")
	})
	err := h(c)
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if rec.last().StatusCode != http.StatusForbidden {
		t.Errorf("expected recorded status 403, got %d", rec.last().StatusCode)
	}
}

func TestAudit_RecorderError_DoesNotBreakRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("disk full")}
	c, r := newTestContext(http.MethodGet, "/api/reminders")
	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", r.Code)
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var got AuditEntry
	f := AuditRecorderFunc(func(e AuditEntry) error {
		got = e
		return nil
	})
	if err := f.RecordAccess(AuditEntry{Resource: "reminders"}); err != nil {
		t.Fatal(err)
	}
	if got.Resource != "reminders" {
		t.Errorf("expected reminders, got %s", got.Resource)
	}
}

func TestSplitAPIPath(t *testing.T) {
	tests := []struct {
		path     string
		resource string
		rest     int
	}{
		{"/api/prescriptions", "prescriptions", 0},
		{"/api/prescriptions/", "prescriptions", 0},
		{"/api/prescriptions/x/approve", "prescriptions", 2},
		{"/api/", "", 0},
		{"/health", "", 0},
	}
	for _, tt := range tests {
		resource, rest := splitAPIPath(tt.path)
		if resource != tt.resource || len(rest) != tt.rest {
			t.Errorf("splitAPIPath(%q) = %q, %v", tt.path, resource, rest)
		}
	}
}
