// Package errors provides categorised errors with optional telemetry reporting
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorCategory represents the type of error for grouping and HTTP mapping
type ErrorCategory string

const (
	CategoryArtifactNotFound    ErrorCategory = "artifact-not-found"
	CategoryLabelSourceNotFound ErrorCategory = "label-source-not-found"
	CategoryPreprocessing       ErrorCategory = "preprocessing"
	CategoryPersistence         ErrorCategory = "persistence"
	CategoryModelInit           ErrorCategory = "model-initialization"
	CategoryInference           ErrorCategory = "inference"
	CategoryValidation          ErrorCategory = "validation"
	CategoryState               ErrorCategory = "state"
	CategoryConfiguration       ErrorCategory = "configuration"
	CategoryDatabase            ErrorCategory = "database"
	CategoryIntegration         ErrorCategory = "integration"
	CategoryNotFound            ErrorCategory = "not-found"
	CategoryGeneric             ErrorCategory = "generic"
)

// Sentinels matched by category through errors.Is.
var (
	ErrArtifactNotFound    = &EnhancedError{Category: CategoryArtifactNotFound}
	ErrLabelSourceNotFound = &EnhancedError{Category: CategoryLabelSourceNotFound}
	ErrPreprocessing       = &EnhancedError{Category: CategoryPreprocessing}
	ErrPersistence         = &EnhancedError{Category: CategoryPersistence}
	ErrValidation          = &EnhancedError{Category: CategoryValidation}
	ErrState               = &EnhancedError{Category: CategoryState}
)

// EnhancedError wraps an error with component, category and context
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time

	mu       sync.Mutex
	reported bool
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	if ee.Err == nil {
		return string(ee.Category)
	}
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is reports a match when target is an EnhancedError of the same category.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return false
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	out := make(map[string]any, len(ee.Context))
	maps.Copy(out, ee.Context)
	return out
}

// MarkReported marks this error as sent to telemetry and reports whether it
// had already been sent.
func (ee *EnhancedError) MarkReported() bool {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	was := ee.reported
	ee.reported = true
	return was
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error builder around err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error builder
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Timing adds performance timing context
func (eb *ErrorBuilder) Timing(operation string, d time.Duration) *ErrorBuilder {
	return eb.Context("operation", operation).Context("duration_ms", d.Milliseconds())
}

// Build creates the EnhancedError and hands it to the telemetry reporter, if any.
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
	if ee.Component == "" {
		ee.Component = "unknown"
	}
	if ee.Category == "" {
		ee.Category = CategoryGeneric
	}

	if r := currentReporter(); r != nil && r.IsEnabled() && reportable(ee.Category) {
		if !ee.MarkReported() {
			r.ReportError(ee)
		}
	}
	return ee
}

// CategoryOf returns the category of the first EnhancedError in err's chain.
func CategoryOf(err error) ErrorCategory {
	var ee *EnhancedError
	if As(err, &ee) {
		return ee.Category
	}
	return CategoryGeneric
}

// user-caused failures are not worth a telemetry event
func reportable(c ErrorCategory) bool {
	switch c {
	case CategoryPreprocessing, CategoryValidation, CategoryState, CategoryNotFound:
		return false
	}
	return true
}

// TelemetryReporter receives built errors
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

type reporterHolder struct{ r TelemetryReporter }

var reporter atomic.Pointer[reporterHolder]

// SetTelemetryReporter installs the reporter used by Build; nil disables reporting.
func SetTelemetryReporter(r TelemetryReporter) {
	if r == nil {
		reporter.Store(nil)
		return
	}
	reporter.Store(&reporterHolder{r: r})
}

func currentReporter() TelemetryReporter {
	if h := reporter.Load(); h != nil {
		return h.r
	}
	return nil
}

// Is wraps errors.Is
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As wraps errors.As
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join wraps errors.Join
func Join(errs ...error) error { return stderrors.Join(errs...) }
