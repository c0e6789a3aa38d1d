package model

import "errors"

// Error taxonomy shared by every pipeline stage. Callers wrap these with
// fmt.Errorf and test with errors.Is.
var (
	// ErrConfig marks an invalid params blob. It aborts the block.
	ErrConfig = errors.New("config error")
	// ErrAddressFormat marks a malformed hex address. It aborts only the
	// component that carried it.
	ErrAddressFormat = errors.New("address format error")
	// ErrDecode marks an event or call that could not be decoded. The
	// offending log or call is skipped.
	ErrDecode = errors.New("decode error")
	// ErrInvariantViolation is fatal for the block and is never retried.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrRange marks a value outside the range of the target type.
	ErrRange = errors.New("range error")
)

// IsFatal reports whether err must abort the block.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfig) || errors.Is(err, ErrInvariantViolation) || errors.Is(err, ErrRange)
}
