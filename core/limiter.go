package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrModelLimit is returned once a ModelLimiter's budget is spent.
var ErrModelLimit = errors.New("model call limit exceeded")

// ModelLimiter bounds the number of model round-trips a host spends on one
// user turn. A limiter with max 0 never refuses.
type ModelLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewModelLimiter creates a limiter allowing max calls.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: max}
}

// Acquire records one call. It fails with ErrModelLimit when the call would
// exceed the budget; the refused call is not counted.
func (ml *ModelLimiter) Acquire() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.max > 0 && ml.count >= ml.max {
		return fmt.Errorf("%w: %d", ErrModelLimit, ml.max)
	}
	ml.count++

	return nil
}

// Count returns the number of accepted calls.
func (ml *ModelLimiter) Count() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	return ml.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.max == 0 {
		return -1
	}

	return ml.max - ml.count
}
