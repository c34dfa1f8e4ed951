// Package health aggregates per-dependency health observations into a
// readiness gate. Probes run concurrently under individual timeouts; a
// background heartbeat keeps the cached records fresh so status endpoints
// can read without re-probing.
package health
