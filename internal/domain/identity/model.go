package identity

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrValidation         = errors.New("validation failed")
)

const defaultSkinType = "normal"

var validSkinTypes = map[string]bool{
	"normal":      true,
	"oily":        true,
	"dry":         true,
	"combination": true,
	"sensitive":   true,
}

// User maps to the users table. Role is the single role carried in issued
// tokens.
type User struct {
	ID           uuid.UUID              `json:"id"`
	Email        string                 `json:"email"`
	PasswordHash string                 `json:"-"`
	FullName     string                 `json:"full_name"`
	Phone        *string                `json:"phone"`
	DateOfBirth  *string                `json:"date_of_birth"`
	Gender       *string                `json:"gender"`
	SkinType     string                 `json:"skin_type"`
	Role         string                 `json:"role"`
	Preferences  map[string]interface{} `json:"preferences"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

type RegisterInput struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FullName    string  `json:"full_name"`
	Phone       *string `json:"phone"`
	DateOfBirth *string `json:"date_of_birth"`
	Gender      *string `json:"gender"`
}

// ProfileUpdate carries the fields a user may change about themselves. Nil
// fields are left as they are.
type ProfileUpdate struct {
	FullName    *string                `json:"full_name"`
	Phone       *string                `json:"phone"`
	DateOfBirth *string                `json:"date_of_birth"`
	Gender      *string                `json:"gender"`
	SkinType    *string                `json:"skin_type"`
	Preferences map[string]interface{} `json:"preferences"`
}

// Session is returned by register and login.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
