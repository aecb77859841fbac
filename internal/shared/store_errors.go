// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

// IsSQLiteBusyError checks if the error is a SQLITE_BUSY error.
// This occurs when the database is locked by another connection.
func IsSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsSQLiteLockedError checks if the error is a "database is locked" error.
func IsSQLiteLockedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsStoreBusyError reports whether a store failure is transient contention:
// a busy or locked SQLite file, or a hosted table API answering 429/503.
func IsStoreBusyError(err error) bool {
	if err == nil {
		return false
	}
	if IsSQLiteBusyError(err) || IsSQLiteLockedError(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "status 429") || strings.Contains(msg, "status 503")
}
