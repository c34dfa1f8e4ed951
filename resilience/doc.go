// Package resilience provides the shared surface for the resilience core:
// the error taxonomy, the uniform result envelope, and the adapter
// capability contract that every external dependency implements.
//
// The package is intentionally dependency-light; the working components live
// in subpackages such as dedupe, circuitbreaker, delivery, health, and server.
package resilience
