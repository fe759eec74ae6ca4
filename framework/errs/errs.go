// Package errs defines the configuration error taxonomy shared by the
// container, pipeline, bus and logging packages.
//
// A *ConfigError means "the application is wired incorrectly": a missing
// registration, a resolution cycle, a second logging initialization. Errors
// raised by request handlers and behaviors are never converted into
// ConfigErrors, so callers can tell the two apart with IsConfigError.
//
//	if errs.IsConfigError(err) {
//	    // operator problem: fix the registrations
//	}
//	if errors.Is(err, errs.ErrNotRegistered) { ... }
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ── Codes ─────────────────────────────────────────────────────────────────────

const (
	CodeNotRegistered       = "NOT_REGISTERED"
	CodeCircularDependency  = "CIRCULAR_DEPENDENCY"
	CodeAlreadyInitialized  = "ALREADY_INITIALIZED"
	CodeCatalogFrozen       = "CATALOG_FROZEN"
	CodeScopeDisposed       = "SCOPE_DISPOSED"
	CodeTypeMismatch        = "TYPE_MISMATCH"
	CodeNoHandler           = "NO_HANDLER"
	CodeInvalidRegistration = "INVALID_REGISTRATION"
)

// Sentinels for errors.Is. They match any ConfigError carrying the same code.
var (
	ErrNotRegistered       = &ConfigError{Code: CodeNotRegistered}
	ErrCircularDependency  = &ConfigError{Code: CodeCircularDependency}
	ErrAlreadyInitialized  = &ConfigError{Code: CodeAlreadyInitialized}
	ErrCatalogFrozen       = &ConfigError{Code: CodeCatalogFrozen}
	ErrScopeDisposed       = &ConfigError{Code: CodeScopeDisposed}
	ErrTypeMismatch        = &ConfigError{Code: CodeTypeMismatch}
	ErrNoHandler           = &ConfigError{Code: CodeNoHandler}
	ErrInvalidRegistration = &ConfigError{Code: CodeInvalidRegistration}
)

// ── ConfigError ───────────────────────────────────────────────────────────────

// ConfigError reports a wiring problem detected at registration or
// resolution time.
type ConfigError struct {
	Code    string
	Key     string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Key != "" {
		b.WriteString(" [")
		b.WriteString(e.Key)
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is matches another ConfigError with the same code. A target with an empty
// key matches every key, which is what the package sentinels rely on.
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Key == "" || t.Key == e.Key)
}

// IsConfigError reports whether err, or anything it wraps, is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// CodeOf returns the code of the first ConfigError in err's chain, or "".
func CodeOf(err error) string {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// ── Constructors ──────────────────────────────────────────────────────────────

func NotRegistered(key string) *ConfigError {
	return &ConfigError{Code: CodeNotRegistered, Key: key, Message: "no registration"}
}

// Circular reports a resolution cycle. path lists the keys in resolution
// order, ending with the key that closed the cycle.
func Circular(path []string) *ConfigError {
	return &ConfigError{
		Code:    CodeCircularDependency,
		Key:     path[len(path)-1],
		Message: "resolution cycle " + strings.Join(path, " -> "),
	}
}

func AlreadyInitialized(what string) *ConfigError {
	return &ConfigError{Code: CodeAlreadyInitialized, Message: what + " already initialized"}
}

func CatalogFrozen(key string) *ConfigError {
	return &ConfigError{Code: CodeCatalogFrozen, Key: key, Message: "catalog is frozen"}
}

func ScopeDisposed(scopeID string) *ConfigError {
	return &ConfigError{Code: CodeScopeDisposed, Message: "scope " + scopeID + " already disposed"}
}

func TypeMismatch(key string, want string, got any) *ConfigError {
	return &ConfigError{
		Code:    CodeTypeMismatch,
		Key:     key,
		Message: fmt.Sprintf("resolved %T, want %s", got, want),
	}
}

func NoHandler(key string) *ConfigError {
	return &ConfigError{Code: CodeNoHandler, Key: key, Message: "no handler registered"}
}

func InvalidRegistration(key, message string) *ConfigError {
	return &ConfigError{Code: CodeInvalidRegistration, Key: key, Message: message}
}
