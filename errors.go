package auth

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Error is the rich error returned by the I/O facing operations of this
// package. Decision functions never return errors.
type Error = goerrors.Error

const (
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeGatewayRejected    = "GATEWAY_REJECTED"
	TextCodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	TextCodeStoreUnavailable   = "TOKEN_STORE_UNAVAILABLE"
	TextCodeProfileUnavailable = "PROFILE_UNAVAILABLE"
)

// ErrTokenMalformed is returned when a token is not a decodable JWT
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a token is past its exp claim
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is returned when login or registration input fails validation
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeBadRequest)

// ErrGatewayRejected is returned when the backend answers with a non success status
var ErrGatewayRejected = goerrors.New("request rejected by auth backend", goerrors.CategoryAuth).
	WithTextCode(TextCodeGatewayRejected)

// ErrGatewayUnavailable is returned when the backend cannot be reached
var ErrGatewayUnavailable = goerrors.New("auth backend unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeGatewayUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrStoreUnavailable is returned when the token store fails
var ErrStoreUnavailable = goerrors.New("token store unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable)

// ErrProfileUnavailable is returned when no profile can be fetched
var ErrProfileUnavailable = goerrors.New("user profile unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeProfileUnavailable)

// WrapError returns a copy of base with err as its source. base is left untouched.
func WrapError(base *Error, err error) *Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if err != nil {
		clone.Source = err
	}
	return clone
}

// HasTextCode reports whether any rich error in the chain of err carries code.
func HasTextCode(err error, code string) bool {
	for err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) || richErr == nil {
			return false
		}
		if richErr.TextCode == code {
			return true
		}
		err = richErr.Source
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed")
}

// IsInvalidCredentialsError reports input validation failures
func IsInvalidCredentialsError(err error) bool {
	return HasTextCode(err, TextCodeInvalidCredentials)
}

// IsGatewayRejectedError reports non success answers from the backend
func IsGatewayRejectedError(err error) bool {
	return HasTextCode(err, TextCodeGatewayRejected)
}

// IsGatewayUnavailableError reports transport failures and 5xx answers
func IsGatewayUnavailableError(err error) bool {
	return HasTextCode(err, TextCodeGatewayUnavailable)
}

// IsStoreUnavailableError reports token store failures
func IsStoreUnavailableError(err error) bool {
	return HasTextCode(err, TextCodeStoreUnavailable)
}

// IsProfileUnavailableError reports failed profile fetches
func IsProfileUnavailableError(err error) bool {
	return HasTextCode(err, TextCodeProfileUnavailable)
}
