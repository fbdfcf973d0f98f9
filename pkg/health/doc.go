// Package health verifies that deployed pieces of the stack actually work:
// the application container locally, the deployed application remotely, and
// the extraction job end to end.
//
// Checks are advisory. A deployment that converged but fails a
// health check is reported loudly and left in place; nothing here rolls
// anything back. Remote checks retry with linearly growing waits because
// freshly deployed applications routinely need a minute to come up.
package health
