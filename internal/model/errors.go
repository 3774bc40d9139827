package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a per-image failure.
type ErrorKind string

const (
	// ErrorKindDecode marks an unreadable file, a non-image, or an image
	// with fewer than three colour channels.
	ErrorKindDecode ErrorKind = "decode"
	// ErrorKindFormat marks a file name that does not follow
	// <sid>_<heading>_<pitch>.<ext>.
	ErrorKindFormat ErrorKind = "format"
	// ErrorKindComputation marks an empty window, mismatched planes, or a
	// non-finite coverage value.
	ErrorKindComputation ErrorKind = "computation"
)

// ImageError is a recoverable failure scoped to a single image.
type ImageError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ImageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// DecodeError wraps err as a decode failure for path.
func DecodeError(path string, err error) error {
	return &ImageError{Kind: ErrorKindDecode, Path: path, Err: err}
}

// FormatError wraps err as a file-name format failure for path.
func FormatError(path string, err error) error {
	return &ImageError{Kind: ErrorKindFormat, Path: path, Err: err}
}

// ComputationError wraps err as a coverage computation failure.
func ComputationError(path string, err error) error {
	return &ImageError{Kind: ErrorKindComputation, Path: path, Err: err}
}

// KindOf returns the ErrorKind carried by err, or "" when err is not an
// ImageError.
func KindOf(err error) ErrorKind {
	var ie *ImageError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// AsSkip converts a per-image error into a skip record. The second result is
// false when err is not an ImageError.
func AsSkip(path string, err error) (Skip, bool) {
	var ie *ImageError
	if !errors.As(err, &ie) {
		return Skip{}, false
	}
	if ie.Path != "" {
		path = ie.Path
	}
	reason := ""
	if ie.Err != nil {
		reason = ie.Err.Error()
	}
	return Skip{Path: path, Kind: ie.Kind, Reason: reason}, true
}
