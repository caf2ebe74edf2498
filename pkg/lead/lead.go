package lead

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Field limits, counted in characters.
const (
	MaxNameLength     = 100
	MaxEmailLength    = 255
	MaxIndustryLength = 50
)

// Lead is a captured prospect. ID and CreatedAt are assigned by the store.
type Lead struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Industry  string    `json:"industry" validate:"required"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Input carries the raw form fields as typed by the user.
type Input struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Industry  string `json:"industry"`
	SessionID string `json:"-"`
}

// Sanitize trims every field, lower-cases the email and caps each field at its
// maximum length. It is pure and idempotent, and only fails on input that is not
// valid UTF-8 text.
func Sanitize(in Input) (Lead, error) {
	for field, v := range map[string]string{"name": in.Name, "email": in.Email, "industry": in.Industry, "session_id": in.SessionID} {
		if !utf8.ValidString(v) {
			return Lead{}, &ValidationError{Field: field, Reason: "not valid text"}
		}
	}
	return Lead{
		Name:      clean(in.Name, MaxNameLength),
		Email:     clean(strings.ToLower(strings.TrimSpace(in.Email)), MaxEmailLength),
		Industry:  clean(in.Industry, MaxIndustryLength),
		SessionID: strings.TrimSpace(in.SessionID),
	}, nil
}

// clean trims, truncates to max runes and trims again, since the cut may end on
// whitespace.
func clean(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		s = string([]rune(s)[:max])
	}
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

var validate = validator.New()

// Validate checks that a sanitized lead is complete and carries a plausible email.
func Validate(l Lead) error {
	if err := validate.Struct(l); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Field: fe.Field(), Reason: fe.Tag()}
		}
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

// Normalize sanitizes and validates raw input. Nothing here touches the network.
func Normalize(in Input) (Lead, error) {
	l, err := Sanitize(in)
	if err != nil {
		return Lead{}, err
	}
	if err := Validate(l); err != nil {
		return Lead{}, err
	}
	return l, nil
}

// MaskEmail keeps the first character of the local part and the domain, for logs.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	r, _ := utf8.DecodeRuneInString(local)
	return string(r) + "***@" + domain
}
