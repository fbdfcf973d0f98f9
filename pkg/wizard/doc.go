// Package wizard drives the multi-phase setup flow: dependency checks,
// platform authentication, database configuration, catalog and volume
// provisioning, job bundle deployment, application deployment, and a final
// non-gating validation pass.
//
// Progress is checkpointed to a JSON state file after every phase, so an
// interrupted or failed run resumes where it left off instead of redoing
// completed work. Phases themselves are idempotent; the checkpoint only
// saves the time of re-probing resources that are already converged.
package wizard
