package allocation

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when year or month cannot name a calendar month.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidRole is returned when a role policy is malformed.
	ErrInvalidRole = errors.New("invalid role policy")
)

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) || errors.Is(err, ErrInvalidRole)
}
