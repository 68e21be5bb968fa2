package reliability

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UpstreamError reports a failed call to an external collaborator
// (inference, translation, transcription, synthesis or delivery).
type UpstreamError struct {
	Service   string
	Op        string
	Status    int
	Retryable bool
	Err       error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " status %d", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err as a non-HTTP upstream failure. Context errors are not retryable.
func Upstream(service, op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{
		Service:   service,
		Op:        op,
		Retryable: !IsContextError(err),
		Err:       err,
	}
}

// HTTPStatusError builds an UpstreamError from a non-2xx response.
func HTTPStatusError(service, op string, status int, body string) error {
	body = strings.TrimSpace(body)
	var cause error
	if body != "" {
		cause = errors.New(body)
	}
	return &UpstreamError{
		Service:   service,
		Op:        op,
		Status:    status,
		Retryable: IsRetryableHTTPStatus(status),
		Err:       cause,
	}
}

// IsRetryable reports whether err is an upstream failure worth another attempt.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}

// IsContextError reports whether err stems from cancellation or a deadline.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
