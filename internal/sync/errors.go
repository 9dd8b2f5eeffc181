package sync

import (
	"errors"
	"fmt"
)

// ErrNoKeyColumns is returned when an upsert batch arrives without a
// declared key. A keyless batch is a normalizer defect, not a runtime
// condition, so the run aborts.
var ErrNoKeyColumns = errors.New("upsert batch has no key columns")

// ConfigError is an invalid run configuration detected before any I/O,
// such as an unknown entity name. It is never retried.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "invalid sync configuration: " + e.Msg
}

// FetchError wraps a remote-source failure during one entity's sync.
// Retry, if any, belongs to the transport; the engine propagates it as-is.
type FetchError struct {
	Entity    Entity
	CompanyID int64
	Err       error
}

func (e *FetchError) Error() string {
	if e.CompanyID == 0 {
		return fmt.Sprintf("failed to fetch %s: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s for company %d: %v", e.Entity, e.CompanyID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
