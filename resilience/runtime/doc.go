// Package runtime provides panic-safety helpers for background goroutines:
// listener fan-out, health heartbeats, and escalation notifications must not
// take the process down when a callback panics.
package runtime
