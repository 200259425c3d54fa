package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/auth"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/metrics"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

// Revoker records a logged-out token until it would have expired anyway.
type Revoker interface {
	Revoke(jti string, expiresAt time.Time)
}

type Service struct {
	repo    Repository
	tokens  *auth.TokenIssuer
	revoker Revoker
	metrics *metrics.Collector
	cost    int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService wires the identity service. tokens may be nil for callers that
// only provision accounts, such as the CLI.
func NewService(repo Repository, tokens *auth.TokenIssuer, revoker Revoker) *Service {
	return &Service{repo: repo, tokens: tokens, revoker: revoker, cost: bcrypt.DefaultCost}
}

func (s *Service) SetMetrics(m *metrics.Collector) {
	s.metrics = m
}

// SetHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) SetHashCost(cost int) {
	s.cost = cost
}

// Register creates a patient account and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	u, err := s.Provision(ctx, in, auth.RolePatient)
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

// Provision creates an account with the given role. Doctor accounts are
// only created this way.
func (s *Service) Provision(ctx context.Context, in RegisterInput, role string) (*User, error) {
	if !auth.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	email := NormalizeEmail(in.Email)
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return nil, fmt.Errorf("%w: full_name is required", ErrValidation)
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}
	if in.DateOfBirth != nil && !validDate(*in.DateOfBirth) {
		return nil, fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     name,
		Phone:        in.Phone,
		DateOfBirth:  in.DateOfBirth,
		Gender:       in.Gender,
		SkinType:     defaultSkinType,
		Role:         role,
		Preferences:  map[string]interface{}{},
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func checkPassword(pw string) error {
	if len(pw) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	if len(pw) > maxPasswordLen {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordLen)
	}
	return nil
}

// Login verifies credentials. Unknown emails and wrong passwords give the
// same error and take about the same time.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		s.metrics.RecordAuthAttempt("failure")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.metrics.RecordAuthAttempt("failure")
		return nil, ErrInvalidCredentials
	}
	s.metrics.RecordAuthAttempt("success")
	return s.session(u)
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	})
	return s.dummyHash
}

func (s *Service) session(u *User) (*Session, error) {
	if s.tokens == nil {
		return nil, errors.New("token issuer not configured")
	}
	tok, err := s.tokens.Issue(u.ID, u.Email, []string{u.Role})
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: tok.AccessToken, TokenType: tok.TokenType, ExpiresAt: tok.ExpiresAt, User: u}, nil
}

func (s *Service) Me(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileUpdate) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return nil, fmt.Errorf("%w: full_name cannot be empty", ErrValidation)
		}
		u.FullName = name
	}
	if in.DateOfBirth != nil {
		if !validDate(*in.DateOfBirth) {
			return nil, fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrValidation)
		}
		u.DateOfBirth = in.DateOfBirth
	}
	if in.SkinType != nil {
		st := strings.ToLower(strings.TrimSpace(*in.SkinType))
		if !validSkinTypes[st] {
			return nil, fmt.Errorf("%w: unknown skin_type %q", ErrValidation, *in.SkinType)
		}
		u.SkinType = st
	}
	if in.Phone != nil {
		u.Phone = in.Phone
	}
	if in.Gender != nil {
		u.Gender = in.Gender
	}
	if in.Preferences != nil {
		u.Preferences = in.Preferences
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Logout revokes the token identified by jti.
func (s *Service) Logout(jti string, expiresAt time.Time) error {
	if jti == "" {
		return fmt.Errorf("%w: token has no id", ErrValidation)
	}
	if s.revoker != nil {
		s.revoker.Revoke(jti, expiresAt)
	}
	return nil
}
