package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

var validRoles = map[string]bool{
	RolePatient: true,
	RoleDoctor:  true,
	RoleAdmin:   true,
}

// ValidRole reports whether r is a role the service knows about.
func ValidRole(r string) bool {
	return validRoles[r]
}

var ErrUnauthenticated = errors.New("unauthenticated")

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID uuid.UUID
	Roles  []string
}

// HasRole reports whether the actor holds role. Admins hold every role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

// IsDoctor reports whether the actor may review prescriptions.
func (a Actor) IsDoctor() bool {
	return a.HasRole(RoleDoctor)
}

// ActorFromContext builds the Actor populated by JWTMiddleware.
func ActorFromContext(ctx context.Context) (Actor, error) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return Actor{}, ErrUnauthenticated
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: malformed subject", ErrUnauthenticated)
	}
	return Actor{UserID: id, Roles: RolesFromContext(ctx)}, nil
}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := Actor{Roles: RolesFromContext(c.Request().Context())}
			for _, required := range roles {
				if actor.HasRole(required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
