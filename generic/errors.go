/*
errors.go - Centralized error types for the generic time layer

PURPOSE:
  Sentinel errors shared by every package that handles ledger dates.
  Domain packages wrap these with record-level context.

USAGE:
    if errors.Is(err, generic.ErrInvalidDate) {
        // skip the row, keep the batch going
    }

SEE ALSO:
  - time.go: ParseTimePoint, ParseMonthKey
  - pallet/errors.go: Issue wraps ErrInvalidDate per record
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when an entry or exit date cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidMonthKey is returned when a month key is not "YYYY-MM".
	ErrInvalidMonthKey = errors.New("invalid month key")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsInputError returns true if the error is due to malformed caller input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidMonthKey) ||
		errors.Is(err, ErrInvalidPeriod)
}
