package services

import (
	"errors"
	"fmt"
)

// Помилки, які бачать викликачі поза сервісами
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("identity already exists")
	ErrUpstream           = errors.New("upstream provider failure")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("not found")
)

// Внутрішні причини відмови токена. Усі обгортають ErrUnauthenticated,
// тому на межі HTTP вони зводяться до одного 401.
var (
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrUnauthenticated)
	ErrTokenExpired     = fmt.Errorf("%w: token expired", ErrUnauthenticated)
	ErrWrongTokenType   = fmt.Errorf("%w: wrong token type", ErrUnauthenticated)
	ErrInvalidClaims    = fmt.Errorf("%w: invalid claims", ErrUnauthenticated)
)

// Коди помилок входу через стороннього провайдера.
// Лише код потрапляє в URL редіректу.
const (
	SignInCodeDenied          = "oauth_denied"
	SignInCodeStateMismatch   = "oauth_state_mismatch"
	SignInCodeMissingCode     = "oauth_missing_code"
	SignInCodeExchangeFailed  = "oauth_exchange_failed"
	SignInCodeEmailUnverified = "oauth_email_unverified"
	SignInCodeAccount         = "oauth_account_error"
	SignInCodeServer          = "oauth_server_error"
)

// SignInError несе машинно-читабельний код і внутрішню причину
type SignInError struct {
	Code string
	Err  error
}

func (e *SignInError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *SignInError) Unwrap() error {
	return e.Err
}

// SignInErrorCode повертає код помилки входу або загальний серверний код
func SignInErrorCode(err error) string {
	var se *SignInError
	if errors.As(err, &se) {
		return se.Code
	}
	return SignInCodeServer
}

func signInFailure(code string, err error) error {
	return &SignInError{Code: code, Err: err}
}
