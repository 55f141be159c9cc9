// Package memoryagent provides the two built-in memory agents:
// ManageMemory stores a memory in the session, user or global tier, and
// ContextMemory recalls what is remembered across tiers as a bullet list.
package memoryagent
