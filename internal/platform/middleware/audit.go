package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/auth"
)

// AuditEntry records who touched which health record and how.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Resource   string
	ResourceID string
	Action     string
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// auditedResources are the /api collections that hold patient data.
var auditedResources = map[string]bool{
	"diagnoses":     true,
	"prescriptions": true,
	"reminders":     true,
}

// Audit emits one structured "phi_access" event per request against a
// patient-data collection, after the handler has run.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			resource, rest := splitAPIPath(req.URL.Path)
			if !auditedResources[resource] {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Resource:   resource,
				ResourceID: extractResourceID(rest),
				Action:     auditAction(req.Method, rest),
				Path:       req.URL.Path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: status,
				UserID:     auth.UserIDFromContext(req.Context()),
				UserRoles:  auth.RolesFromContext(req.Context()),
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

// splitAPIPath turns "/api/prescriptions/<id>/approve" into
// ("prescriptions", ["<id>", "approve"]).
func splitAPIPath(path string) (string, []string) {
	if !strings.HasPrefix(path, "/api/") {
		return "", nil
	}
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/"), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", nil
	}
	return segments[0], segments[1:]
}

func extractResourceID(rest []string) string {
	for _, s := range rest {
		if _, err := uuid.Parse(s); err == nil {
			return s
		}
	}
	return ""
}

// auditAction names the operation. A verb segment such as "approve" or
// "auto-schedule" wins over the HTTP method.
func auditAction(method string, rest []string) string {
	for i := len(rest) - 1; i >= 0; i-- {
		if _, err := uuid.Parse(rest[i]); err != nil && rest[i] != "" {
			return rest[i]
		}
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		if len(rest) == 0 {
			return "search"
		}
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
