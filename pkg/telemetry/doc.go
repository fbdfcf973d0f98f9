// Package telemetry provides observability instrumentation for docforge.
//
// The telemetry package integrates structured logging (zerolog) and metrics
// (Prometheus) into a unified system for monitoring wizard runs.
//
// # Structured Logging
//
// The logger provides component-specific logging with field propagation:
//
//	logger := telemetry.NewLogger(cfg).NewComponentLogger("wizard")
//	logger.WithPhase("database").Info("Phase started")
//	logger.WithError(err).Error("Phase failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Metrics
//
// Prometheus metrics track wizard behavior:
//
//	m.RecordPhase("database", "succeeded", duration)
//	m.RecordControlPlaneCall("volumes.create", "succeeded", duration)
//	m.RecordHealthAttempt("remote", "healthy")
//
// Key metrics exposed:
//
//   - docforge_phases_total{phase,status}
//   - docforge_phase_duration_seconds{phase}
//   - docforge_controlplane_calls_total{operation,status}
//   - docforge_controlplane_call_duration_seconds{operation}
//   - docforge_health_attempts_total{check,result}
//   - docforge_errors_total{class}
//
// Metrics are gathered from the in-process registry at the end of a run;
// a scrape endpoint makes no sense for a short-lived CLI, so the collected
// families are rendered in the final report instead.
package telemetry
