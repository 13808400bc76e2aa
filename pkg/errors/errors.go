package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "CDA1001"
	ErrCodeConnectionTimeout    ErrorCode = "CDA1002"
	ErrCodeAuthenticationFailed ErrorCode = "CDA1003"
	ErrCodeNetworkUnavailable   ErrorCode = "CDA1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound   ErrorCode = "CDA2001"
	ErrCodeConfigInvalid    ErrorCode = "CDA2002"
	ErrCodeConfigMissing    ErrorCode = "CDA2003"
	ErrCodeCredentialLookup ErrorCode = "CDA2004"

	// Landing and source errors (3xxx)
	ErrCodeSourceUnavailable   ErrorCode = "CDA3001"
	ErrCodeLandingTableMissing ErrorCode = "CDA3002"
	ErrCodePartitionIncomplete ErrorCode = "CDA3003"
	ErrCodeRecordMalformed     ErrorCode = "CDA3004"
	ErrCodeSeedInvalid         ErrorCode = "CDA3005"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "CDA4001"
	ErrCodeSQLPermission     ErrorCode = "CDA4002"
	ErrCodeSQLTimeout        ErrorCode = "CDA4003"
	ErrCodeSQLTransaction    ErrorCode = "CDA4004"
	ErrCodeSQLObjectNotFound ErrorCode = "CDA4005"
	ErrCodeSQLExecution      ErrorCode = "CDA4006"
	ErrCodeTableSwapFailed   ErrorCode = "CDA4007"

	// File system errors (5xxx)
	ErrCodeFileNotFound   ErrorCode = "CDA5001"
	ErrCodeFilePermission ErrorCode = "CDA5002"
	ErrCodeFileOperation  ErrorCode = "CDA5005"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "CDA6001"
	ErrCodeInvalidInput     ErrorCode = "CDA6002"
	ErrCodeRequiredField    ErrorCode = "CDA6003"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "CDA9001"
	ErrCodeTimeout            ErrorCode = "CDA9002"
	ErrCodeResourceExhausted  ErrorCode = "CDA9003"
	ErrCodeServiceUnavailable ErrorCode = "CDA9004"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run cannot continue
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError. Context of a wrapped AppError is inherited.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	var inner *AppError
	if errors.As(err, &inner) {
		for k, v := range inner.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSuggestions(
			"Check your network connection",
			"Verify the Snowflake account identifier",
			"Check that the warehouse is running",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'cda setup' to reconfigure",
		)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	causeText := ""
	if cause != nil {
		causeText = strings.ToLower(cause.Error())
	}

	switch {
	case strings.Contains(causeText, "insufficient privileges") || strings.Contains(causeText, "access denied"):
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Verify the role has USAGE on the database and schema",
			"Grant CREATE TABLE on the output schema",
		)
	case strings.Contains(causeText, "does not exist") || strings.Contains(causeText, "not found"):
		err.Code = ErrCodeSQLObjectNotFound
		_ = err.WithSuggestions(
			"Check the raw landing schema name",
			"Confirm the ingestion connector has created the table",
		)
	case strings.Contains(causeText, "timeout"):
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions("Increase snowflake.timeout", "Use a larger warehouse")
	case strings.Contains(causeText, "syntax error"):
		err.Code = ErrCodeSQLSyntax
	}

	return err
}

// SourceError creates an error for an unreadable landing table
func SourceError(system, entity string, cause error) *AppError {
	return Wrap(cause, ErrCodeSourceUnavailable, fmt.Sprintf("Failed to read landing table %s/%s", system, entity)).
		WithContext("system", system).
		WithContext("entity", entity)
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
