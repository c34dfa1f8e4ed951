// Package circuitbreaker provides the per-dependency failure-isolation
// registry. Breakers are created lazily on first use and never destroyed;
// administrative resets force them back to closed.
//
// Run calls through Registry.Execute so failures are tracked consistently
// across callers. While a breaker is open, calls fail fast with a
// dependency-unavailable error and the dependency is never invoked; after the
// cooldown exactly one trial call probes recovery.
package circuitbreaker
