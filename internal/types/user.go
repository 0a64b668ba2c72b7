package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is a registered user as stored in the users table.
type Identity struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	DiabetesType int       `json:"diabetes_type"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"` // never exposed
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IdentityView is the public representation returned to clients.
type IdentityView struct {
	ID           uuid.UUID `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Name         string    `json:"name" example:"Jane Doe"`
	Age          int       `json:"age" example:"34"`
	DiabetesType int       `json:"diabetes_type" example:"1"`
	Email        string    `json:"email" example:"jane@example.com"`
	Phone        string    `json:"phone" example:"+8801700000000"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// View drops the credential from the identity.
func (i *Identity) View() *IdentityView {
	if i == nil {
		return nil
	}
	return &IdentityView{
		ID:           i.ID,
		Name:         i.Name,
		Age:          i.Age,
		DiabetesType: i.DiabetesType,
		Email:        i.Email,
		Phone:        i.Phone,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

// NormalizeEmail is applied on every read and write so that email uniqueness
// and login are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name         string `json:"name" example:"Jane Doe"`
	Age          int    `json:"age" example:"34"`
	DiabetesType int    `json:"diabetes_type" example:"1"`
	Email        string `json:"email" example:"jane@example.com"`
	Phone        string `json:"phone" example:"+8801700000000"`
	Password     string `json:"password" example:"Str0ngP@ss!"`
}

// Validate checks required fields; the password itself is checked by the hasher.
func (r RegisterRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("name is required: %w", ErrValidation)
	case r.Age < 0:
		return fmt.Errorf("age must not be negative: %w", ErrValidation)
	case !validEmail(r.Email):
		return fmt.Errorf("a valid email is required: %w", ErrValidation)
	case r.Password == "":
		return fmt.Errorf("password is required: %w", ErrValidation)
	}
	return nil
}

// NewIdentity carries a registration into the credential store. Password is
// the raw secret; the store hashes it before anything is written.
type NewIdentity struct {
	Name         string
	Age          int
	DiabetesType int
	Email        string
	Phone        string
	Password     string
}

func (r RegisterRequest) NewIdentity() NewIdentity {
	return NewIdentity{
		Name:         strings.TrimSpace(r.Name),
		Age:          r.Age,
		DiabetesType: r.DiabetesType,
		Email:        NormalizeEmail(r.Email),
		Phone:        strings.TrimSpace(r.Phone),
		Password:     r.Password,
	}
}

// LoginRequest is the JSON form of POST /auth/token.
type LoginRequest struct {
	Email    string `json:"email" example:"jane@example.com"`
	Password string `json:"password" example:"Str0ngP@ss!"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token" example:"eyJhbGciOiJI..."`
	TokenType   string `json:"token_type" example:"bearer"`
}

// IdentityPatch is the body of PUT /auth/me. Absent fields are left untouched.
type IdentityPatch struct {
	Name         Optional[string] `json:"name" swaggertype:"string"`
	Age          Optional[int]    `json:"age" swaggertype:"integer"`
	DiabetesType Optional[int]    `json:"diabetes_type" swaggertype:"integer"`
	Email        Optional[string] `json:"email" swaggertype:"string"`
	Phone        Optional[string] `json:"phone" swaggertype:"string"`
	Password     Optional[string] `json:"password" swaggertype:"string"`
}

// Empty reports whether no field was supplied.
func (p IdentityPatch) Empty() bool {
	return !p.Name.Set && !p.Age.Set && !p.DiabetesType.Set &&
		!p.Email.Set && !p.Phone.Set && !p.Password.Set
}

// Validate rejects explicit nulls (every column is NOT NULL) and bad values.
func (p IdentityPatch) Validate() error {
	nulls := map[string]bool{
		"name":          p.Name.Null,
		"age":           p.Age.Null,
		"diabetes_type": p.DiabetesType.Null,
		"email":         p.Email.Null,
		"phone":         p.Phone.Null,
		"password":      p.Password.Null,
	}
	for _, field := range []string{"name", "age", "diabetes_type", "email", "phone", "password"} {
		if nulls[field] {
			return fmt.Errorf("%s cannot be null: %w", field, ErrValidation)
		}
	}
	if p.Name.Present() && strings.TrimSpace(p.Name.Value) == "" {
		return fmt.Errorf("name must not be empty: %w", ErrValidation)
	}
	if p.Age.Present() && p.Age.Value < 0 {
		return fmt.Errorf("age must not be negative: %w", ErrValidation)
	}
	if p.Email.Present() && !validEmail(p.Email.Value) {
		return fmt.Errorf("email is not valid: %w", ErrValidation)
	}
	if p.Password.Present() && p.Password.Value == "" {
		return fmt.Errorf("password must not be empty: %w", ErrValidation)
	}
	return nil
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
