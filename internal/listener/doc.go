// Package listener runs the accept loop. Every accepted connection becomes
// exactly one job on the worker pool, so slow clients only ever hold a
// worker, never the loop itself. Transient Accept failures are retried with
// exponential backoff.
package listener
