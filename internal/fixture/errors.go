package fixture

import (
	"errors"
	"fmt"
	"time"
)

// ErrProvisioning is the sentinel wrapped by every ProvisioningError.
var ErrProvisioning = errors.New("provisioning failed")

// ErrTimeout is the sentinel wrapped by every TimeoutError.
var ErrTimeout = errors.New("timed out")

// ErrClosed is returned by a registry after Close.
var ErrClosed = errors.New("fixture registry closed")

// ProvisioningError reports a fixture that could not be made ready. It is
// recorded against its key and returned to every waiter on that key.
type ProvisioningError struct {
	Key     Key
	Elapsed time.Duration
	Err     error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("%s for %s after %s: %v", ErrProvisioning.Error(), e.Key, e.Elapsed.Round(time.Millisecond), e.Err)
}

// Is matches ErrProvisioning, so errors.Is works alongside the cause chain.
func (e *ProvisioningError) Is(target error) bool {
	return target == ErrProvisioning
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// TimeoutError reports an operation that exceeded its configured limit.
type TimeoutError struct {
	Op      string
	Key     Key
	Limit   time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s for %s: limit %s, elapsed %s",
		e.Op, ErrTimeout.Error(), e.Key, e.Limit, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
