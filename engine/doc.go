// Package engine hosts the agent catalog: it registers agents, dispatches
// perform requests by name and records every perform in the session history.
//
// A perform runs synchronously on the caller's goroutine. The engine bounds
// how many performs run at once, applies a per-invocation timeout, recovers
// panics into PANIC errors and keeps a cancel handle per in-flight
// invocation so hosts can abort it with Cancel.
//
// Lifecycle hooks (before/after perform, on error) are attached through a
// CallbackManager.
package engine
