package domain

import "fmt"

// Error types for consistent error handling across the console.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrForbidden indicates the user lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates there is no signed-in, provisioned user.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// AuthErrorKind classifies failures reported by the auth collaborator.
type AuthErrorKind int

const (
	AuthUnavailable AuthErrorKind = iota
	AuthInvalidCredentials
	AuthUnknownAccount
	AuthRateLimited
	AuthDisabled
)

var authMessages = map[AuthErrorKind]string{
	AuthUnavailable:        "Sign-in failed. Please try again.",
	AuthInvalidCredentials: "Incorrect email or password.",
	AuthUnknownAccount:     "No account found for this email.",
	AuthRateLimited:        "Too many attempts. Please try again later.",
	AuthDisabled:           "This account has been disabled.",
}

func (k AuthErrorKind) String() string {
	switch k {
	case AuthInvalidCredentials:
		return "invalid_credentials"
	case AuthUnknownAccount:
		return "unknown_account"
	case AuthRateLimited:
		return "rate_limited"
	case AuthDisabled:
		return "disabled"
	default:
		return "unavailable"
	}
}

// ErrAuth is an authentication failure. Only its Message is shown to users.
type ErrAuth struct {
	Kind AuthErrorKind
	Err  error
}

func (e *ErrAuth) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("auth %s", e.Kind)
}

func (e *ErrAuth) Unwrap() error {
	return e.Err
}

// Message returns the fixed user-facing text for the error kind.
func (e *ErrAuth) Message() string {
	return authMessages[e.Kind]
}

// ErrNotProvisioned means the identity signed in but has no UserProfile.
type ErrNotProvisioned struct {
	Email string
}

func (e *ErrNotProvisioned) Error() string {
	return fmt.Sprintf("no user profile for %s", e.Email)
}
