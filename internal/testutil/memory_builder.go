package testutil

import (
	"github.com/hupe1980/agentcatalog/core"
)

// Entry builds a MemoryEntry stamped with the given date and time.
func Entry(id, message, memType, date, clock string, tags ...string) core.MemoryEntry {
	return core.MemoryEntry{
		ID:         id,
		Message:    message,
		Type:       memType,
		Importance: 3,
		Tags:       tags,
		Date:       date,
		Time:       clock,
	}
}
