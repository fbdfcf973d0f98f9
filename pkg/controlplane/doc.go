// Package controlplane wraps the platform CLI behind a typed client.
//
// Every control-plane operation is a subprocess invocation of the
// `databricks` binary: success is exit code zero, and identifiers come back
// either as JSON (current-user, apps, job runs) or as human-readable prose
// (bundle summaries). The brittle text parsing lives here, behind one
// independently testable adapter, so callers only ever see typed results.
//
// Existence probes return a tri-state Existence instead of a bare bool:
// a transport or list failure is Unknown, not Absent, so callers can decide
// to attempt creation while tolerating an already-exists diagnostic.
package controlplane
