package entities

import (
	"errors"
	"fmt"
)

// Error classes. Callers classify failures with errors.Is against these.
var (
	// ErrValidation indicates the caller supplied unusable input.
	ErrValidation = errors.New("validation failed")

	// ErrNotInitialized indicates the embedding capability is not available yet.
	ErrNotInitialized = errors.New("model not initialized")

	// ErrNotFound indicates a requested session or file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUpstream indicates the generative backend failed.
	ErrUpstream = errors.New("upstream failure")

	// ErrPerFile indicates a single knowledge base file failed during a search.
	ErrPerFile = errors.New("knowledge base file failed")
)

// Specific conditions, each belonging to one class above.
var (
	ErrNoSession       error = &classError{class: ErrNotFound, msg: "No document has been processed. Please upload a document first."}
	ErrSessionNotFound error = &classError{class: ErrNotFound, msg: "session not found"}
	ErrKBFileNotFound  error = &classError{class: ErrNotFound, msg: "file not found in knowledge base"}
	ErrKBMissing       error = &classError{class: ErrNotFound, msg: "knowledge base folder not found or not a directory"}
	ErrInvalidChunking error = &classError{class: ErrValidation, msg: "chunk overlap must be smaller than chunk size"}
)

// classError is a sentinel with its own message that also matches its class.
type classError struct {
	class error
	msg   string
}

func (e *classError) Error() string { return e.msg }

func (e *classError) Is(target error) bool { return target == e.class }

// ValidationError carries a user-facing message for rejected input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is makes ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UnsupportedFileType builds the validation error for a non-text upload.
func UnsupportedFileType(ext string) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf("Unsupported file type: %s. Please upload a TXT file.", ext)}
}

// UpstreamError wraps a failure talking to the generative backend.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("error querying generative backend (%s): %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes UpstreamError match ErrUpstream.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// PerFileError records why one knowledge base file was skipped.
type PerFileError struct {
	Filename string
	Err      error
}

func (e *PerFileError) Error() string {
	return fmt.Sprintf("processing %s: %v", e.Filename, e.Err)
}

func (e *PerFileError) Unwrap() error { return e.Err }

// Is makes PerFileError match ErrPerFile.
func (e *PerFileError) Is(target error) bool { return target == ErrPerFile }
