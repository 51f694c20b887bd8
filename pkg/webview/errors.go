package webview

import (
	"errors"
	"fmt"

	"github.com/bnema/webloop/internal/application/port"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("webview: invalid configuration")
	// ErrResourceGone matches every *ResourceGoneError.
	ErrResourceGone = errors.New("webview: resource gone")
	// ErrAborted matches requests failed because their event loop exited.
	ErrAborted = errors.New("webview: aborted by event loop exit")
	// ErrConcurrentPump is returned when a second pump is attempted on a loop.
	ErrConcurrentPump = errors.New("webview: event loop is already being pumped")
	// ErrDevtoolsDisabled is returned by devtools calls on views built without devtools.
	ErrDevtoolsDisabled = errors.New("webview: devtools disabled for this webview")
	// ErrNavigationSuperseded fails a navigation replaced by a newer one.
	ErrNavigationSuperseded = errors.New("webview: navigation superseded")
	// ErrDriverUnavailable is returned by NewEventLoop when the requested driver was not compiled in.
	ErrDriverUnavailable = port.ErrDriverUnavailable
)

// ValidationError reports a missing, contradictory or out-of-range builder field.
// It is always returned before any native resource is created.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("webview: invalid %s config: %s %s", e.Entity, e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ResourceGoneError reports an operation on a destroyed window or webview,
// or on a loop that already exited.
type ResourceGoneError struct {
	Kind    string
	ID      uint64
	Aborted bool
}

func (e *ResourceGoneError) Error() string {
	if e.Aborted {
		return fmt.Sprintf("webview: %s %d: request aborted, event loop exited", e.Kind, e.ID)
	}
	return fmt.Sprintf("webview: %s %d is gone", e.Kind, e.ID)
}

// Is reports whether target is ErrResourceGone, or ErrAborted for aborted requests.
func (e *ResourceGoneError) Is(target error) bool {
	if target == ErrResourceGone {
		return true
	}
	return e.Aborted && target == ErrAborted
}

// NavigationError reports a content source that failed to load.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("webview: navigation to %q failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// ScriptEvaluationError reports a script that threw, or a page context that was unavailable.
type ScriptEvaluationError struct {
	Message string
}

func (e *ScriptEvaluationError) Error() string {
	return "webview: script evaluation failed: " + e.Message
}

// ListenerError reports an IPC listener that returned an error or panicked.
// It never interrupts delivery to the remaining listeners.
type ListenerError struct {
	WebViewID uint64
	Index     int
	Err       error
	Panic     any
}

func (e *ListenerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("webview: ipc listener %d of webview %d panicked: %v", e.Index, e.WebViewID, e.Panic)
	}
	return fmt.Sprintf("webview: ipc listener %d of webview %d failed: %v", e.Index, e.WebViewID, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}

func validationErr(entity, field, reason string) error {
	return &ValidationError{Entity: entity, Field: field, Reason: reason}
}

func goneErr(kind string, id uint64) error {
	return &ResourceGoneError{Kind: kind, ID: id}
}

func abortedErr(kind string, id uint64) error {
	return &ResourceGoneError{Kind: kind, ID: id, Aborted: true}
}
