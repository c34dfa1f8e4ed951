// Package dedupe coalesces concurrent identical logical operations.
//
// Callers derive an opaque key from an operation's semantically relevant
// inputs (see Key) and run the operation through Coalescer.Do. Within one
// suppression window the operation executes exactly once; every caller
// observes the same result or error.
package dedupe
