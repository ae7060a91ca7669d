// Package errors provides structured error handling for the history engine.
package errors

import goerrors "errors"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// History protocol errors. These indicate a violation of the host
	// reporting contract and are fatal to the triggering operation.
	CodeHistoryInvalidReport    Code = "HISTORY_INVALID_REPORT"
	CodeHistoryUnknownDocument  Code = "HISTORY_UNKNOWN_DOCUMENT"
	CodeHistoryMissingDocument  Code = "HISTORY_MISSING_DOCUMENT"
	CodeHistoryMissingState     Code = "HISTORY_MISSING_STATE"
	CodeHistoryIdentityConflict Code = "HISTORY_IDENTITY_CONFLICT"
	CodeHistoryStateNotHydrated Code = "HISTORY_STATE_NOT_HYDRATED"
	CodeHistoryStateNotCached   Code = "HISTORY_STATE_NOT_CACHED"
	CodeHistoryInvalidTarget    Code = "HISTORY_INVALID_TARGET"
	CodeHistoryNoSavedState     Code = "HISTORY_NO_SAVED_STATE"

	// Journal errors.
	CodeJournalNotConfigured Code = "JOURNAL_NOT_CONFIGURED"
)

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code Code) bool {
	var domainErr *Error
	if goerrors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
