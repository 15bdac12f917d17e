package domain

import (
	"net/mail"
	"strings"
	"unicode"
)

// Role is the application-level permission tier of a user profile.
type Role string

const (
	RoleAdministrator Role = "Administrator"
	RoleUser          Role = "User"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdministrator || r == RoleUser
}

// UserProfile is the application account record, distinct from the auth identity.
type UserProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Role     Role   `json:"role"`
	Avatar   string `json:"avatar"`
}

// IsAdmin reports whether the profile carries the administrator role.
func (u *UserProfile) IsAdmin() bool {
	return u != nil && u.Role == RoleAdministrator
}

// UserFromDocument decodes a remote user document.
func UserFromDocument(doc Document) UserProfile {
	f := doc.Fields
	u := UserProfile{
		ID:       doc.ID,
		Name:     stringField(f, "name"),
		Email:    stringField(f, "email"),
		Password: stringField(f, "password"),
		Role:     Role(stringField(f, "role")),
		Avatar:   stringField(f, "avatar"),
	}
	if u.Avatar == "" {
		u.Avatar = AvatarInitial(u.Name)
	}
	return u
}

// AvatarInitial is the upper-cased first letter of a display name.
func AvatarInitial(name string) string {
	for _, r := range strings.TrimSpace(name) {
		return string(unicode.ToUpper(r))
	}
	return ""
}

// UserInput is the payload collected by the user administration form.
// An empty Password on update means "keep the stored one".
type UserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Role     Role   `json:"role"`
}

// Validate checks the user form. A password is only required on create.
func (in *UserInput) Validate(create bool) error {
	if strings.TrimSpace(in.Name) == "" {
		return &ErrValidation{Field: "name", Message: "is required"}
	}
	if strings.TrimSpace(in.Email) == "" {
		return &ErrValidation{Field: "email", Message: "is required"}
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return &ErrValidation{Field: "email", Message: "is not a valid address"}
	}
	if create && in.Password == "" {
		return &ErrValidation{Field: "password", Message: "is required"}
	}
	if in.Password != "" && len(in.Password) < 6 {
		return &ErrValidation{Field: "password", Message: "must have at least 6 characters"}
	}
	if in.Role == "" {
		in.Role = RoleUser
	}
	if !in.Role.Valid() {
		return &ErrValidation{Field: "role", Message: "must be Administrator or User"}
	}
	return nil
}

// Fields returns the document field map for the profile, with the password
// value supplied by the caller (already merged and hashed).
func (in UserInput) Fields(password string) map[string]any {
	name := strings.TrimSpace(in.Name)
	return map[string]any{
		"name":     name,
		"email":    strings.TrimSpace(in.Email),
		"password": password,
		"role":     string(in.Role),
		"avatar":   AvatarInitial(name),
	}
}
