package auth

import "errors"

// ErrorKind names why an initData credential was declined.
type ErrorKind string

const (
	KindMalformedCredential  ErrorKind = "malformed_credential"
	KindMissingSignature     ErrorKind = "missing_signature"
	KindSignatureMismatch    ErrorKind = "signature_mismatch"
	KindStaleCredential      ErrorKind = "stale_credential"
	KindMalformedTimestamp   ErrorKind = "malformed_timestamp"
	KindMalformedUserPayload ErrorKind = "malformed_user_payload"
)

var (
	ErrMalformedCredential  = &AuthError{Kind: KindMalformedCredential}
	ErrMissingSignature     = &AuthError{Kind: KindMissingSignature}
	ErrSignatureMismatch    = &AuthError{Kind: KindSignatureMismatch}
	ErrStaleCredential      = &AuthError{Kind: KindStaleCredential}
	ErrMalformedTimestamp   = &AuthError{Kind: KindMalformedTimestamp}
	ErrMalformedUserPayload = &AuthError{Kind: KindMalformedUserPayload}

	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrTokenDisabled = errors.New("access tokens are disabled")
	ErrEmptyBotToken = errors.New("bot token is empty")
)

// AuthError is a terminal verification failure. Two AuthErrors match under
// errors.Is when their kinds are equal, so callers compare against the Err*
// sentinels above.
type AuthError struct {
	Kind ErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// Reason is the client-facing description. It never carries input data.
func (e *AuthError) Reason() string {
	switch e.Kind {
	case KindMalformedCredential:
		return "Malformed initData"
	case KindMissingSignature:
		return "initData hash is missing"
	case KindSignatureMismatch:
		return "Invalid initData signature"
	case KindStaleCredential:
		return "initData has expired"
	case KindMalformedTimestamp:
		return "Invalid initData auth_date"
	case KindMalformedUserPayload:
		return "Invalid initData user payload"
	default:
		return "Invalid initData"
	}
}

func newAuthError(kind ErrorKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

// Reason maps any error returned by Service.Authenticate to a safe message.
func Reason(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason()
	}
	return "Invalid initData"
}

// KindOf returns the failure kind, or "" for errors that are not AuthErrors.
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}
