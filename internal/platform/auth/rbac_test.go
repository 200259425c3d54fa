package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name      string
		roles     []string
		required  []string
		wantAllow bool
	}{
		{"doctor on doctor route", []string{RoleDoctor}, []string{RoleDoctor}, true},
		{"admin passes any route", []string{RoleAdmin}, []string{RoleDoctor}, true},
		{"patient on doctor route", []string{RolePatient}, []string{RoleDoctor}, false},
		{"one of many", []string{RolePatient}, []string{RoleDoctor, RolePatient}, true},
		{"no roles", nil, []string{RolePatient}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithIdentity(req.Context(), uuid.NewString(), tt.roles...))
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := RequireRole(tt.required...)(okHandler)(c)
			if tt.wantAllow {
				if err != nil {
					t.Errorf("expected access, got %v", err)
				}
				return
			}
			expectStatus(t, err, http.StatusForbidden)
		})
	}
}

func TestActor_Roles(t *testing.T) {
	tests := []struct {
		roles      []string
		wantDoctor bool
	}{
		{[]string{RolePatient}, false},
		{[]string{RoleDoctor}, true},
		{[]string{RoleAdmin}, true},
		{nil, false},
	}
	for _, tt := range tests {
		a := Actor{UserID: uuid.New(), Roles: tt.roles}
		if got := a.IsDoctor(); got != tt.wantDoctor {
			t.Errorf("IsDoctor() with %v = %v, want %v", tt.roles, got, tt.wantDoctor)
		}
	}
}

func TestActorFromContext(t *testing.T) {
	if _, err := ActorFromContext(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}

	bad := WithIdentity(context.Background(), "not-a-uuid", RolePatient)
	if _, err := ActorFromContext(bad); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated for malformed subject, got %v", err)
	}

	id := uuid.New()
	actor, err := ActorFromContext(WithIdentity(context.Background(), id.String(), RoleDoctor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor.UserID != id || !actor.IsDoctor() {
		t.Errorf("unexpected actor %+v", actor)
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RolePatient, RoleDoctor, RoleAdmin} {
		if !ValidRole(r) {
			t.Errorf("expected %s to be valid", r)
		}
	}
	if ValidRole("physician") {
		t.Error("expected physician to be unknown")
	}
}
