package capability

import (
	"errors"
	"fmt"
)

// ErrUnsupported is the sentinel wrapped by every UnsupportedCapabilityError.
var ErrUnsupported = errors.New("unsupported capability")

// UnsupportedCapabilityError is returned by a client that refuses a request
// needing a capability it does not have. In expect-rejection scenarios it is
// the required outcome.
type UnsupportedCapabilityError struct {
	Family     string
	Capability Capability
	Detail     string
}

func (e *UnsupportedCapabilityError) Error() string {
	msg := fmt.Sprintf("%s: %s does not support %s", ErrUnsupported.Error(), e.Family, e.Capability)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *UnsupportedCapabilityError) Unwrap() error {
	return ErrUnsupported
}

// Reject builds the error a client returns when it refuses c.
func Reject(family string, c Capability, detail string) error {
	return &UnsupportedCapabilityError{Family: family, Capability: c, Detail: detail}
}

// IsUnsupported reports whether err is, or wraps, an unsupported-capability
// rejection.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}
