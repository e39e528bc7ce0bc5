// Package core provides the schema-inference and data-cleaning engine.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Run failures are stored in the run ledger as technical strings; the API maps
// them through MapError before showing them to people.
//
// Error codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File not found: The input file does not exist
//	          Action: Check the path, or upload the file again
//	          Patterns: "file not found"
//
//	FILE002 - Invalid file: File is not a readable CSV or workbook
//	          Action: Ensure the file is comma-separated with a header row
//	          Patterns: "invalid csv", "invalid xlsx"
//
//	FILE003 - Encoding error: File could not be decoded
//	          Action: Save the file as UTF-8 and try again
//	          Patterns: "encoding error"
//
//	FILE004 - No file: No file was provided
//	          Action: Upload a CSV file or enable auto-detection
//	          Patterns: "no file provided"
//
//	FILE005 - File too large: File exceeds the upload size limit
//	          Action: Split the file into smaller chunks
//	          Patterns: "file too large"
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - No columns: The file has no header row
//	         Action: Add a header row naming each column
//	         Patterns: "table has no columns", "schema error"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - System busy: Too many runs in progress
//	         Action: Wait for a running pipeline to finish and try again
//	         Patterns: "too many concurrent runs"
//
//	RUN002 - Run not found: No run with this ID
//	         Action: Check the run ID in the history list
//	         Patterns: "run not found"
//
//	RUN003 - Auto-detection failed: Today's file is not in the input folder
//	         Action: Drop the dated export into the input folder or upload it
//	         Patterns: "auto-detection failed"
//
//	RUN004 - Request cancelled: The run was cancelled
//	         Action: Start a new run when ready
//	         Patterns: "context canceled"
//
//	RUN005 - Run timeout: The run took too long
//	         Action: Try a smaller file or raise PIPELINE_RUN_TIMEOUT
//	         Patterns: "context deadline exceeded"
//
//	RUN006 - Invalid run ID: The run ID is not a UUID
//	         Action: Copy the run ID from the history list
//	         Patterns: "invalid run id"
//
// # Quarantine Errors (QUA001-QUA099)
//
//	QUA001 - Quarantine file not found
//	         Action: Refresh the quarantine list
//	         Patterns: "quarantine file not found"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused: Unable to connect to database
//	DB002 - Connection reset: Database connection was interrupted
//	DB003 - Timeout: Operation timed out
//	DB004 - Deadlock: Database was busy with conflicting operations
//	DB005 - Not configured: No database configured for this command
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are listed
// before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors (FILE001-FILE005)
	// =========================================================================
	{
		pattern: "quarantine file not found",
		msg: UserMessage{
			Message: "Quarantine file not found",
			Action:  "Refresh the quarantine list",
			Code:    "QUA001",
		},
	},
	{
		pattern: "file not found",
		msg: UserMessage{
			Message: "The input file does not exist",
			Action:  "Check the path, or upload the file again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a readable CSV",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "File is not a readable Excel workbook",
			Action:  "Re-save the workbook as .xlsx or export it as CSV",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File could not be decoded",
			Action:  "Save the file as UTF-8 and try again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Upload a CSV file or enable auto-detection",
			Code:    "FILE004",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the upload size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Schema Errors (SCH001)
	// =========================================================================
	{
		pattern: "table has no columns",
		msg: UserMessage{
			Message: "The file has no header row",
			Action:  "Add a header row naming each column",
			Code:    "SCH001",
		},
	},
	{
		pattern: "schema error",
		msg: UserMessage{
			Message: "The file has no usable columns",
			Action:  "Add a header row naming each column",
			Code:    "SCH001",
		},
	},

	// =========================================================================
	// Run Errors (RUN001-RUN006)
	// =========================================================================
	{
		pattern: "too many concurrent runs",
		msg: UserMessage{
			Message: "Too many runs in progress",
			Action:  "Wait for a running pipeline to finish and try again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "No run with this ID",
			Action:  "Check the run ID in the history list",
			Code:    "RUN002",
		},
	},
	{
		pattern: "auto-detection failed",
		msg: UserMessage{
			Message: "Today's file is not in the input folder",
			Action:  "Drop the dated export into the input folder or upload it",
			Code:    "RUN003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The run was cancelled",
			Action:  "Start a new run when ready",
			Code:    "RUN004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The run took too long",
			Action:  "Try a smaller file or raise PIPELINE_RUN_TIMEOUT",
			Code:    "RUN005",
		},
	},
	{
		pattern: "invalid run id",
		msg: UserMessage{
			Message: "The run ID is not valid",
			Action:  "Copy the run ID from the history list",
			Code:    "RUN006",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB005)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "database not configured",
		msg: UserMessage{
			Message: "No database is configured",
			Action:  "Set DATABASE_URL or use --dry-run",
			Code:    "DB005",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	return MapErrorString(err.Error())
}

// MapErrorString is MapError for an error already flattened to text, such
// as the error_message column of the run ledger.
func MapErrorString(s string) UserMessage {
	if s == "" {
		return UserMessage{}
	}

	errStr := strings.ToLower(s)
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError wraps a technical error with its user-facing message.
type UserError struct {
	UserMessage
	Err error
}

// NewUserError maps err and wraps it. Returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{UserMessage: MapError(err), Err: err}
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}
