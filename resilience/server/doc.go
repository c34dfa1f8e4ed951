// Package server hosts the operational HTTP surface of the resilience core:
// health and readiness endpoints, prometheus metrics, and admin routes for
// breaker resets and mode toggles, with graceful shutdown of the server and
// the health heartbeat.
package server
