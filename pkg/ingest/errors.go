package ingest

import (
	"context"
	"errors"
	"fmt"
)

// FatalSetupError aborts a run before any data is loaded: the outer archive
// is missing or unreadable, or the database is unreachable at start.
type FatalSetupError struct {
	Op  string
	Err error
}

func (e *FatalSetupError) Error() string {
	return fmt.Sprintf("setup failed: %s: %v", e.Op, e.Err)
}

func (e *FatalSetupError) Unwrap() error { return e.Err }

// MerchantArchiveError means one merchant archive could not be used. The
// merchant contributes no rows and the run continues.
type MerchantArchiveError struct {
	Archive string
	Err     error
}

func (e *MerchantArchiveError) Error() string {
	return fmt.Sprintf("merchant archive %s: %v", e.Archive, e.Err)
}

func (e *MerchantArchiveError) Unwrap() error { return e.Err }

// BulkLoadError means staging one merchant's listings failed and was rolled back.
type BulkLoadError struct {
	Archive string
	Err     error
}

func (e *BulkLoadError) Error() string {
	return fmt.Sprintf("bulk load %s: %v", e.Archive, e.Err)
}

func (e *BulkLoadError) Unwrap() error { return e.Err }

// PhaseError is an unrecoverable failure after setup, such as losing the
// database connection. It moves the run to FAILED.
type PhaseError struct {
	State State
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("run failed in %s: %v", e.State, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// recoverable reports whether err is scoped to a single merchant.
func recoverable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var archiveErr *MerchantArchiveError
	var loadErr *BulkLoadError
	return errors.As(err, &archiveErr) || errors.As(err, &loadErr)
}
