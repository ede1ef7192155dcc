package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalidCode            = errors.New("invalid code")
	ErrCodeExpired            = errors.New("code expired")
	ErrUserNotFound           = errors.New("user not found")
	ErrUserCreation           = errors.New("user creation failed")
	ErrInvalidInviteCode      = errors.New("invalid invite code")
	ErrInviteAlreadyActivated = errors.New("invite code already activated")
	ErrSelfInviteNotAllowed   = errors.New("self invite not allowed")
)

// ValidationError agrupa errores de entrada por campo.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
