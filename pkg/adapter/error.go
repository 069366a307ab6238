package adapter

import (
	"fmt"
)

// AdapterError wraps provider errors with upstream HTTP metadata.
// Status is zero when the failure never reached the provider
// (network error, timeout).
type AdapterError struct {
	Status int
	Body   string
	Err    error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "adapter error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("adapter error (status=%d)", e.Status)
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
