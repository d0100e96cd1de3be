// Package apperrors implements the error taxonomy from spec.md §7: every
// error carries a code, category, severity, free-form context, and a
// timestamp, in the spirit of email-service's app/errors.AppError but
// generalized with the category/severity axes the spec requires.
package apperrors

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dripwave/sequencer/internal/metrics"
)

type Category string

const (
	CategoryValidation     Category = "VALIDATION"
	CategoryDatabase       Category = "DATABASE"
	CategoryNetwork        Category = "NETWORK"
	CategoryExternal       Category = "EXTERNAL_SERVICE"
	CategoryConfiguration  Category = "CONFIGURATION"
	CategorySystem         Category = "SYSTEM"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// defaultSeverity mirrors spec.md §7's "category -> default severity" table.
var defaultSeverity = map[Category]Severity{
	CategoryValidation:    SeverityLow,
	CategoryDatabase:      SeverityHigh,
	CategoryNetwork:       SeverityMedium,
	CategoryExternal:      SeverityMedium,
	CategoryConfiguration: SeverityCritical,
	CategorySystem:        SeverityCritical,
}

// AppError is the structured error type logged and counted throughout this
// core.
type AppError struct {
	Code      string
	Category  Category
	Severity  Severity
	Message   string
	Context   map[string]any
	Timestamp time.Time
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Category, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Category, e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New builds an AppError, defaulting Severity from Category when unset.
func New(code string, category Category, message string, err error) *AppError {
	return &AppError{
		Code:      code,
		Category:  category,
		Severity:  defaultSeverity[category],
		Message:   message,
		Context:   map[string]any{},
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

func (e *AppError) WithContext(key string, value any) *AppError {
	e.Context[key] = value
	return e
}

// severityLevel maps a Severity onto the zerolog level Log uses to emit it.
// Critical is logged at error level here; callers that need the process to
// die on a critical configuration error still call log.Fatal themselves.
func severityLevel(s Severity) zerolog.Level {
	switch s {
	case SeverityLow:
		return zerolog.InfoLevel
	case SeverityMedium:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Log emits e on log at the level its Severity maps to, attaching the
// {code, category, severity, context, timestamp} fields spec.md §7
// requires, and increments metrics.ErrorsTotal by category/code so
// "metrics counter per error code" is a real, observable feature rather
// than a declared-but-unused counter.
func (e *AppError) Log(log zerolog.Logger) {
	ev := log.WithLevel(severityLevel(e.Severity)).
		Str("code", e.Code).
		Str("category", string(e.Category)).
		Str("severity", string(e.Severity)).
		Time("timestamp", e.Timestamp)
	for k, v := range e.Context {
		ev = ev.Interface(k, v)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	ev.Msg(e.Message)

	metrics.ErrorsTotal.WithLabelValues(string(e.Category), e.Code).Inc()
}

func Validation(message string, err error) *AppError {
	return New("VALIDATION_ERROR", CategoryValidation, message, err)
}

func Database(message string, err error) *AppError {
	return New("DATABASE_ERROR", CategoryDatabase, message, err)
}

// DuplicateIdemKey is the expected unique-violation on Outbox.idemKey.
// spec.md §7: "unique-violation on idemKey is expected and downgraded to
// info" — callers must check for this with IsDuplicateIdemKey and log it at
// info, not error, severity.
func DuplicateIdemKey(idemKey string) *AppError {
	e := New("DUPLICATE_IDEM_KEY", CategoryDatabase, "idempotency key already exists", nil)
	e.Severity = SeverityLow
	return e.WithContext("idem_key", idemKey)
}

// ConcurrentStateAdvance is the expected race where another Scheduler/Worker
// already moved a lead's state past PENDING/RUNNING before this transaction's
// UPDATE ran; like DuplicateIdemKey, it is a skip, not a failure.
func ConcurrentStateAdvance(leadStateID string) *AppError {
	e := New("CONCURRENT_STATE_ADVANCE", CategoryDatabase, "lead state was concurrently advanced", nil)
	e.Severity = SeverityLow
	return e.WithContext("lead_state_id", leadStateID)
}

func IsDuplicateIdemKey(err error) bool {
	ae, ok := err.(*AppError)
	return ok && ae.Code == "DUPLICATE_IDEM_KEY"
}

func Network(message string, err error) *AppError {
	return New("NETWORK_ERROR", CategoryNetwork, message, err)
}

func External(message string, err error) *AppError {
	return New("EXTERNAL_SERVICE_ERROR", CategoryExternal, message, err)
}

func Configuration(message string, err error) *AppError {
	return New("CONFIGURATION_ERROR", CategoryConfiguration, message, err)
}

func System(message string, err error) *AppError {
	return New("SYSTEM_ERROR", CategorySystem, message, err)
}
