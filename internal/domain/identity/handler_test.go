package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *Service, *fakeRevoker, *echo.Echo) {
	svc, _, rev := newTestService(t)
	return NewHandler(svc, zerolog.Nop()), svc, rev, echo.New()
}

func jsonRequest(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func asUser(c echo.Context, id uuid.UUID) {
	ctx := auth.WithIdentity(c.Request().Context(), id.String(), auth.RolePatient)
	c.SetRequest(c.Request().WithContext(ctx))
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTP %d, got %v", code, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, httpErr.Code, httpErr.Message)
	}
}

func TestHandler_Register(t *testing.T) {
	h, _, _, e := newTestHandler(t)

	c, rec := jsonRequest(e, http.MethodPost, `{"email":"a@example.com","password":"long-enough","full_name":"A"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["token_type"] != "bearer" || body["access_token"] == "" {
		t.Errorf("unexpected body %v", body)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not carry the password hash")
	}

	c, _ = jsonRequest(e, http.MethodPost, `{"email":"a@example.com","password":"long-enough","full_name":"A"}`)
	expectHTTPError(t, h.Register(c), http.StatusConflict)

	c, _ = jsonRequest(e, http.MethodPost, `{"email":"b@example.com","password":"short","full_name":"B"}`)
	expectHTTPError(t, h.Register(c), http.StatusBadRequest)
}

func TestHandler_Login(t *testing.T) {
	h, svc, _, e := newTestHandler(t)
	svc.Register(context.Background(), validInput())

	c, rec := jsonRequest(e, http.MethodPost, `{"email":"priya@example.com","password":"s3cret-pass"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = jsonRequest(e, http.MethodPost, `{"email":"priya@example.com","password":"nope-nope"}`)
	expectHTTPError(t, h.Login(c), http.StatusUnauthorized)
}

func TestHandler_MeAndUpdate(t *testing.T) {
	h, svc, _, e := newTestHandler(t)
	sess, _ := svc.Register(context.Background(), validInput())

	c, rec := jsonRequest(e, http.MethodGet, "")
	asUser(c, sess.User.ID)
	if err := h.Me(c); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"email":"priya@example.com"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c, rec = jsonRequest(e, http.MethodPut, `{"skin_type":"dry","gender":"female"}`)
	asUser(c, sess.User.ID)
	if err := h.UpdateMe(c); err != nil {
		t.Fatalf("UpdateMe: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"skin_type":"dry"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c, _ = jsonRequest(e, http.MethodGet, "")
	expectHTTPError(t, h.Me(c), http.StatusUnauthorized)

	c, _ = jsonRequest(e, http.MethodGet, "")
	asUser(c, uuid.New())
	expectHTTPError(t, h.Me(c), http.StatusNotFound)
}

func TestHandler_Logout(t *testing.T) {
	h, _, rev, e := newTestHandler(t)

	c, _ := jsonRequest(e, http.MethodPost, "")
	expectHTTPError(t, h.Logout(c), http.StatusUnauthorized)

	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "jti-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	c, rec := jsonRequest(e, http.MethodPost, "")
	c.SetRequest(c.Request().WithContext(context.WithValue(c.Request().Context(), auth.ClaimsKey, claims)))
	if err := h.Logout(c); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Successfully logged out") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if _, ok := rev.revoked["jti-42"]; !ok {
		t.Error("expected jti to be revoked")
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, _, e := newTestHandler(t)
	h.RegisterRoutes(e.Group("/api"))

	want := map[string]bool{
		"POST /api/auth/register": false,
		"POST /api/auth/login":    false,
		"GET /api/auth/me":        false,
		"PUT /api/auth/me":        false,
		"POST /api/auth/logout":   false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("missing route %s", route)
		}
	}
}
