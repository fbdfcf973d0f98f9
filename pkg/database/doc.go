// Package database verifies connectivity to the managed Postgres instance
// and converges its schema. Schema changes run through versioned embedded
// migrations, so re-running against an already initialized database is a
// no-op.
package database
