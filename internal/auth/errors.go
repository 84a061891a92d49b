package auth

import (
	"errors"
	"fmt"
)

// Kind classifies a flow failure. The HTTP layer maps kinds to status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInvalidCode
	KindCodeExpired
	KindInvalidCredentials
	KindEmailNotVerified
	KindAccountLinkConflict
	KindAlreadyExists
	KindAlreadyVerified
	KindWeakPassword
	KindGoogleAuthFailed
	KindUnauthorized
	KindExternalService
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidCode:
		return "invalid_code"
	case KindCodeExpired:
		return "code_expired"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindEmailNotVerified:
		return "email_not_verified"
	case KindAccountLinkConflict:
		return "account_link_conflict"
	case KindAlreadyExists:
		return "already_exists"
	case KindAlreadyVerified:
		return "already_verified"
	case KindWeakPassword:
		return "weak_password"
	case KindGoogleAuthFailed:
		return "google_auth_failed"
	case KindUnauthorized:
		return "unauthorized"
	case KindExternalService:
		return "external_service"
	default:
		return "internal"
	}
}

// Error is a classified flow error. Message is safe to show to clients; Cause is not.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindInvalidCode}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the client-facing text for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Something went wrong"
}

var (
	// store errors
	ErrDuplicateIdentity = errors.New("duplicate identity")
	ErrCodeNotMatched    = errors.New("code no longer matches")

	// token errors
	ErrInvalidToken = errors.New("invalid token")
)

const (
	msgGoogleOnlySignup = "This email is linked to Google login. Please sign in with Google or set a password via 'Forgot Password'."
	msgGoogleOnlyLogin  = "This account is linked to Google login. Please continue with Google or set a password via 'Forgot Password'."
	msgPasswordDisabled = "Password login is not enabled. Use Google login or set a password first."
	msgInvalidCode      = "Invalid code"
	msgWeakPassword     = "Password must be at least 8 characters"
	msgPasswordTooLong  = "Password must be at most 72 bytes"
)
