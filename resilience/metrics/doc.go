// Package metrics exposes prometheus instruments for the resilience core:
// delivery attempt counters, backoff histograms, breaker state gauges, and
// dedup counters.
package metrics
