package services

import (
	"errors"

	"github.com/todolist-app/server/internal/store"
)

// ValidationError reports input the user can correct. Its message is safe to
// show on the form that submitted it.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

var (
	// ErrUsernameTaken is returned when registering or renaming to an existing username.
	ErrUsernameTaken = &ValidationError{Message: "Username already exists."}

	// ErrPasswordMismatch is returned when a new password and its confirmation differ.
	ErrPasswordMismatch = &ValidationError{Message: "Passwords do not match."}

	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUnauthenticated is returned when no valid session backs the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when the caller acts on another user's data.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when the target record does not exist.
	ErrNotFound = store.ErrNotFound
)

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
