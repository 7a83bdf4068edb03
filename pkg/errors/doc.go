// Package errors provides structured error types for better observability
// and programmatic error handling across the application.
//
// Pipeline failures carry a stable code and a context map describing where
// the failure happened:
//
//	err := errors.NewWithContext(
//	    errors.ErrCodeSectionNotFound,
//	    "command output not found in dump",
//	    map[string]any{
//	        "section": "modems",
//	        "command": "show cable modem",
//	    },
//	)
//
// Callers inspect the code with errors.As or the HasCode helper.
package errors
