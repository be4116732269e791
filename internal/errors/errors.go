package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies failures surfaced to callers.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrDestinationBusy ErrorCode = "DESTINATION_BUSY" // 423
	ErrStorage         ErrorCode = "STORAGE"          // 500
	ErrConfig          ErrorCode = "CONFIG"           // 500
	ErrInternal        ErrorCode = "INTERNAL"         // 500
	ErrTranscription   ErrorCode = "TRANSCRIPTION"    // 502
	ErrAnalysis        ErrorCode = "ANALYSIS"         // 502
)

// AppError is a structured error with code, HTTP status and details.
type AppError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewInvalidRequest creates a 400 error for bad input.
func NewInvalidRequest(msg string) *AppError {
	return &AppError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewDestinationBusy reports that the record blob is locked or held open by another process.
// The user can recover by closing the file and retrying.
func NewDestinationBusy(location string, err error) *AppError {
	return &AppError{
		Code:    ErrDestinationBusy,
		Status:  423,
		Message: fmt.Sprintf("records file is open or locked: close %q and try again", location),
		Details: map[string]any{"location": location},
		Err:     err,
	}
}

// NewStorage wraps a generic I/O or encoding failure of the record store.
func NewStorage(err error) *AppError {
	msg := "storage error"
	if err != nil {
		msg = "error saving record: " + err.Error()
	}
	return &AppError{
		Code:    ErrStorage,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// NewConfig creates a startup configuration error.
func NewConfig(msg string) *AppError {
	return &AppError{
		Code:    ErrConfig,
		Status:  500,
		Message: msg,
	}
}

// NewTranscription wraps a failed transcription call.
func NewTranscription(err error) *AppError {
	return upstream(ErrTranscription, "transcription failed", err)
}

// NewAnalysis wraps a failed language-model analysis call.
func NewAnalysis(err error) *AppError {
	return upstream(ErrAnalysis, "analysis failed", err)
}

func upstream(code ErrorCode, prefix string, err error) *AppError {
	msg := prefix
	if err != nil {
		msg = prefix + ": " + err.Error()
	}
	return &AppError{
		Code:    code,
		Status:  502,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err (or anything it wraps) is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// StatusOf returns the HTTP status for err, 500 for anything unclassified.
func StatusOf(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return 500
}

// CodeOf returns the code for err, or ErrInternal when unclassified.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
