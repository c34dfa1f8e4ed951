// Package backoff provides retry delay helpers: capped exponential growth
// with proportional jitter, and context-aware waiting.
//
// Use Delay to compute the wait for a retry attempt and WaitContext to sleep
// while respecting cancellation and deadlines.
package backoff
