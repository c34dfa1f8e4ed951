// Package delivery implements the two-phase retry protocol for the
// highest-stakes outbound operation: create stages a resource on the
// dependency, confirm commits it.
//
// Create runs exactly once; its failure is terminal. Confirm tolerates
// read-after-write lag with a bounded exponential-backoff retry loop, and
// exhaustion escalates through a best-effort notifier without ever masking
// the original error. Mock and dry-run modes short-circuit the live calls
// for credential-less environments.
package delivery
