package downloader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrNetwork indicates a connection-level failure. Retried at the item
// level, never fatal to the whole call.
type ErrNetwork struct {
	Err error
}

func (e ErrNetwork) Error() string {
	return fmt.Errorf("network: %w", e.Err).Error()
}

func (e ErrNetwork) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates a provider-side throttling signal.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrEngine indicates a search provider's query failed entirely. The
// engine's result shows zero downloads but sibling engines continue.
type ErrEngine struct {
	Engine string
	Err    error
}

func (e ErrEngine) Error() string {
	return fmt.Errorf("engine %s: %w", e.Engine, e.Err).Error()
}

func (e ErrEngine) Unwrap() error {
	return e.Err
}

// ErrValidation indicates fetched-but-unusable content. Discarded, not
// retried as the same URL.
type ErrValidation struct {
	Err error
}

func (e ErrValidation) Error() string {
	return fmt.Errorf("validation: %w", e.Err).Error()
}

func (e ErrValidation) Unwrap() error {
	return e.Err
}

// ErrConfiguration indicates missing or invalid configuration. Fails the
// whole acquisition immediately.
type ErrConfiguration struct {
	Err error
}

func (e ErrConfiguration) Error() string {
	return fmt.Errorf("configuration: %w", e.Err).Error()
}

func (e ErrConfiguration) Unwrap() error {
	return e.Err
}

// DownloadError is the terminal failure raised only when zero images were
// obtained after exhausting all retries.
type DownloadError struct {
	Keyword string
	Retries int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("no images downloaded for %q after %d retries", e.Keyword, e.Retries)
}

// classifyError folds transport faults into the taxonomy. Unknown errors
// pass through unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrNetwork{Err: err}
	}
	if strings.Contains(err.Error(), "http status 429") {
		return ErrRateLimited{Err: err}
	}
	return err
}

// retryable reports whether an item-level failure is worth another attempt
// on the same URL.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var validation ErrValidation
	if errors.As(err, &validation) {
		return false
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return true
	}
	var network ErrNetwork
	if errors.As(err, &network) {
		return true
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return true
	}
	return false
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var network ErrNetwork
	if errors.As(err, &network) {
		return "network"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var engine ErrEngine
	if errors.As(err, &engine) {
		return "engine"
	}
	var validation ErrValidation
	if errors.As(err, &validation) {
		return "validation"
	}
	var configuration ErrConfiguration
	if errors.As(err, &configuration) {
		return "configuration"
	}
	var terminal *DownloadError
	if errors.As(err, &terminal) {
		return "download"
	}
	return "other"
}
