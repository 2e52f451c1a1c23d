package tiltify

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest    = errors.New("tiltify: bad request")
	ErrUnauthorized  = errors.New("tiltify: unauthorized")
	ErrForbidden     = errors.New("tiltify: forbidden")
	ErrNotFound      = errors.New("tiltify: not found")
	ErrUnprocessable = errors.New("tiltify: unprocessable entity")
	ErrUnknownStatus = errors.New("tiltify: unexpected status")
	ErrUnavailable   = errors.New("tiltify: api unavailable")
)

// StatusError is a non-200 envelope status.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tiltify: status %d", e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == e.kind()
}

func (e *StatusError) kind() error {
	switch e.Status {
	case 400:
		return ErrBadRequest
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 422:
		return ErrUnprocessable
	default:
		return ErrUnknownStatus
	}
}

func retryableStatus(status int) bool {
	return status == 429 || status >= 500
}
