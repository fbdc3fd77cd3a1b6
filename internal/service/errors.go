package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"fluxia/internal/domain"
	"fluxia/internal/repository"
)

// Sentinel kinds; match with errors.Is. The HTTP layer maps them to status codes.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrConflict        = errors.New("conflict")
)

// Error carries a user-facing message and one of the sentinel kinds.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func invalidf(format string, args ...any) error {
	return newError(ErrInvalidArgument, format, args...)
}

// fromRepo translates repository sentinels; other errors are wrapped with op.
func fromRepo(err error, op, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return newError(ErrNotFound, "%s", notFoundMsg)
	case errors.Is(err, repository.ErrConflict):
		return newError(ErrConflict, "%s", strings.TrimSpace(err.Error()))
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// checkID rejects ids that cannot name a row so they never reach a uuid column.
func checkID(id, notFoundMsg string) error {
	if _, err := uuid.Parse(id); err != nil {
		return newError(ErrNotFound, "%s", notFoundMsg)
	}
	return nil
}

// fromValidation turns a domain validation failure into ErrInvalidArgument.
func fromValidation(err error) error {
	if errors.Is(err, domain.ErrValidation) {
		return invalidf("%s", strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": "))
	}
	return err
}
