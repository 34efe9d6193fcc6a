// Package apierror implements the closed error taxonomy of spec §7: every
// failure a handler can report maps to exactly one Kind, one HTTP status,
// and one client-safe message. No other package renders an error to an
// HTTP response body.
package apierror

import "net/http"

// Kind enumerates every error surface named in spec §7.
type Kind string

const (
	BadEnvelope                Kind = "bad_envelope"
	InvalidSignature           Kind = "invalid_signature"
	RateLimited                Kind = "rate_limited"
	InvalidEmail               Kind = "invalid_email"
	MissingUIHost              Kind = "missing_ui_host"
	MagicLinkInvalid           Kind = "magic_link_invalid"
	TokenExpired               Kind = "token_expired"
	RefreshExpired             Kind = "refresh_expired"
	RotationFailed             Kind = "rotation_failed"
	SimultaneousIdentityTokens Kind = "simultaneous_identity_tokens"
	SharedSecretForbidden      Kind = "shared_secret_forbidden"
	SharedSecretNotFound       Kind = "shared_secret_not_found"
	InternalSerialisation      Kind = "internal_serialisation"
)

// Error is the closed result type handlers return; the HTTP boundary is
// the only place that converts it to a response body.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

var table = map[Kind]struct {
	status  int
	message string
}{
	BadEnvelope:                {http.StatusBadRequest, "Invalid request"},
	InvalidSignature:           {http.StatusBadRequest, "Invalid signature"},
	RateLimited:                {http.StatusTooManyRequests, "Too many requests"},
	InvalidEmail:               {http.StatusBadRequest, "Invalid email"},
	MissingUIHost:              {http.StatusBadRequest, "ui_host is required to issue a magic link"},
	MagicLinkInvalid:           {http.StatusBadRequest, "Invalid or expired magic link"},
	TokenExpired:               {http.StatusUnauthorized, "Access token expired"},
	RefreshExpired:             {http.StatusUnauthorized, "Session expired"},
	RotationFailed:             {http.StatusUnauthorized, "Key rotation failed, re-authentication required"},
	SimultaneousIdentityTokens: {http.StatusForbidden, "Security violation"},
	SharedSecretForbidden:      {http.StatusForbidden, "Forbidden"},
	SharedSecretNotFound:       {http.StatusNotFound, "Not found"},
	InternalSerialisation:      {http.StatusInternalServerError, "Internal error"},
}

// New builds the Error for a Kind using the fixed client-visible surface
// of spec §7. Handlers never choose their own status code or message for
// a Kind that already has one here.
func New(kind Kind) *Error {
	t, ok := table[kind]
	if !ok {
		t = table[InternalSerialisation]
		kind = InternalSerialisation
	}
	return &Error{Kind: kind, Status: t.status, Message: t.message}
}

// AsError unwraps err into an *Error, defaulting to InternalSerialisation
// when it isn't one — the fallback of spec §7's InternalSerialisation row.
func AsError(err error) *Error {
	if aerr, ok := err.(*Error); ok {
		return aerr
	}
	return New(InternalSerialisation)
}
