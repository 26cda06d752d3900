// Package telemetry reports enhanced errors to Sentry when a DSN is configured.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/errors"
	"github.com/Brownie44l1/anidex/internal/logging"
)

// SentryReporter implements errors.TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError sends an enhanced error to Sentry with its category and context as tags.
func (sr *SentryReporter) ReportError(ee *errors.EnhancedError) {
	if !sr.enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		scope.SetLevel(levelFor(ee.Category))
		scope.SetFingerprint([]string{ee.Component, string(ee.Category)})
		for k, v := range ee.GetContext() {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(ee)
	})
}

func levelFor(c errors.ErrorCategory) sentry.Level {
	switch c {
	case errors.CategoryArtifactNotFound, errors.CategoryLabelSourceNotFound, errors.CategoryModelInit:
		return sentry.LevelFatal
	case errors.CategoryIntegration:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

// Init initializes Sentry and installs the reporter. The returned function
// flushes buffered events and must be called before exit.
func Init(settings conf.TelemetrySettings, release string) (func(), error) {
	if !settings.Sentry.Enabled || settings.Sentry.DSN == "" {
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		Environment:      settings.Sentry.Environment,
		Release:          fmt.Sprintf("anidex@%s", release),
		Debug:            settings.Sentry.Debug,
		SampleRate:       1.0,
		AttachStacktrace: false,
		ServerName:       "",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			event.User = sentry.User{}
			event.ServerName = ""
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(NewSentryReporter(true))
	logging.ForService("telemetry").Info("sentry error reporting enabled",
		"environment", settings.Sentry.Environment)

	return func() {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(2 * time.Second)
	}, nil
}
