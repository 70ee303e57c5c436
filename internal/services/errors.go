package services

import (
	"errors"
	"fmt"
)

var (
	ErrNoReferenceDocuments = errors.New("no reference documents found")
	ErrBackendUnavailable   = errors.New("backend unavailable")
	ErrInvalidAudioInput    = errors.New("invalid audio input")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrSessionNotFound      = errors.New("session not found")
)

// BackendError wraps a transport or provider failure. It matches
// ErrBackendUnavailable under errors.Is.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrBackendUnavailable, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackendUnavailable }

// FeatureDisabledError is returned when the active profile turns a feature off.
type FeatureDisabledError struct{ Feature string }

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("%s is disabled for this tutor", e.Feature)
}
