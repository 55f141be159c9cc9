// Package memory implements core.MemoryStore on top of any core.FileStore.
//
// Each namespace (global, user, session) is a single JSON object blob that
// maps entry ids to entries. Blobs are edited in place with JSON path
// updates, so keys written by other producers survive a rewrite.
package memory
