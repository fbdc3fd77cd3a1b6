package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is wrapped when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is wrapped when an insert or update hits a unique constraint.
	ErrConflict = errors.New("already exists")
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// getErr wraps a QueryRow/Scan error for entity what. A malformed uuid
// (22P02) matches no row.
func getErr(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) || pqCode(err) == codeInvalidText {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// writeErr wraps an Exec error for entity what. Unique violations become
// ErrConflict; malformed or dangling references become ErrNotFound.
func writeErr(op, what string, err error) error {
	switch pqCode(err) {
	case codeUniqueViolation:
		return fmt.Errorf("%s %w", what, ErrConflict)
	case codeInvalidText, codeForeignKeyViolation:
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to %s %s: %w", op, what, err)
}

// requireAffected turns a zero-row update or delete into ErrNotFound.
func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func ptrString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}
