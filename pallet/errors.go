/*
errors.go - Error taxonomy of the ledger engine

PURPOSE:
  The engine has no fatal errors. Records it cannot use become Issues on the
  result and the batch continues. Sentinels are for callers that construct
  records or look documents up.

ERROR CATEGORIES:
  1. InvalidDate      - entry or exit date missing/unparseable: skipped
  2. OverDepletion    - exits exceed the entry: stock clamped at zero
  3. DocumentNotFound - no document matches a report query
  4. NegativeUnits    - rejected at record construction
  5. DuplicateRecord  - rejected by stores on append

  Zero-unit or undated exits are inert, not errors.

SEE ALSO:
  - generic/errors.go: ErrInvalidDate
  - factory/records.go: produces Issues while building records
*/
package pallet

import (
	"errors"
	"fmt"

	"github.com/warp/pallet-ledger/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNegativeUnits is returned when a record or exit has a negative count.
	ErrNegativeUnits = errors.New("negative unit count")

	// ErrDocumentNotFound is returned when a document number matches nothing.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrRecordNotFound is returned when a record id does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrOverDepletion flags exits summing beyond the entry count.
	ErrOverDepletion = errors.New("exits exceed entry units")

	// ErrInvalidRate is returned when a rate is negative.
	ErrInvalidRate = errors.New("invalid rate")

	// ErrDuplicateRecord is returned when a record id is already stored.
	ErrDuplicateRecord = errors.New("duplicate record id")
)

// =============================================================================
// ISSUES - Non-fatal per-record problems
// =============================================================================

// IssueKind classifies an Issue.
type IssueKind string

const (
	IssueInvalidDate   IssueKind = "invalid_date"
	IssueOverDepletion IssueKind = "over_depletion"
)

// Issue records a record (or one of its exit slots) the engine skipped or
// clamped.
type Issue struct {
	Kind     IssueKind
	RecordID RecordID
	Slot     string // empty for entry-level issues
	Detail   string
}

func (i *Issue) Error() string {
	if i.Slot != "" {
		return fmt.Sprintf("%s: record %s slot %s: %s", i.Kind, i.RecordID, i.Slot, i.Detail)
	}
	return fmt.Sprintf("%s: record %s: %s", i.Kind, i.RecordID, i.Detail)
}

func (i *Issue) Unwrap() error {
	switch i.Kind {
	case IssueInvalidDate:
		return generic.ErrInvalidDate
	case IssueOverDepletion:
		return ErrOverDepletion
	default:
		return nil
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing document or record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound) || errors.Is(err, ErrRecordNotFound)
}

// IsConflict returns true if the write clashes with stored data.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateRecord)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNegativeUnits) ||
		errors.Is(err, ErrInvalidRate) ||
		generic.IsInputError(err)
}
