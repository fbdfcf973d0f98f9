// Package resources converges external control-plane resources toward the
// desired setup: catalogs, schemas, volumes, secrets, the extraction job
// bundle, and the managed application.
//
// The control plane has no native create-if-absent primitive for most of
// these, so every Ensure operation probes first and then creates, treating
// an "already exists" diagnostic from the create call itself as success.
// That makes each operation idempotent even when the pre-check raced or
// could not reach the platform. Nothing here ever deletes or revokes.
package resources
