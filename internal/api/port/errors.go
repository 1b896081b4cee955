package port

import (
	"errors"
	"fmt"
)

var (
	ErrPayloadTooLarge = errors.New("model file is too large")
	ErrHostUnreachable = errors.New("media host unreachable")
	ErrUploadFailed    = errors.New("upload failed")
)

// UploadErrorKind distinguishes upload failures for user messaging.
type UploadErrorKind int

const (
	UploadRejected UploadErrorKind = iota
	UploadTooLarge
	UploadNetwork
)

func (k UploadErrorKind) String() string {
	switch k {
	case UploadTooLarge:
		return "too_large"
	case UploadNetwork:
		return "network"
	default:
		return "rejected"
	}
}

// UploadError reports a failed transfer to the media host.
type UploadError struct {
	Kind       UploadErrorKind
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	base := e.sentinel().Error()
	if e.StatusCode != 0 && e.Err != nil {
		return fmt.Sprintf("%s (status %d): %v", base, e.StatusCode, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", base, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", base, e.Err)
	}
	return base
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *UploadError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *UploadError) sentinel() error {
	switch e.Kind {
	case UploadTooLarge:
		return ErrPayloadTooLarge
	case UploadNetwork:
		return ErrHostUnreachable
	default:
		return ErrUploadFailed
	}
}
