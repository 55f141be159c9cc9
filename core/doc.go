// Package core provides the foundational domain types and interfaces used by
// agentcatalog. It defines the contracts for:
//
//   - Agents (named units of work invoked uniformly through Perform)
//   - Metadata (the function-definition shape a host exposes to models)
//   - InvocationContext (per-call arguments, identity and backing services)
//   - FileStore (the generic file-storage abstraction)
//   - MemoryStore (three-tier persistent memory: session, user, global)
//   - Sessions and Events (invocation history per conversation)
//
// Concrete implementations live in sibling packages (storage, memory, session,
// engine) so callers can depend on these small interfaces and swap backends at
// wiring time.
package core
