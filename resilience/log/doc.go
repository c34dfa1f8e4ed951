// Package log defines the leveled Logger interface consumed by every
// resilience component, plus a stdlib-backed implementation and a no-op
// logger for tests.
//
// Production services normally plug in the zap subpackage; components treat
// a nil logger as no-op so wiring stays optional.
package log
