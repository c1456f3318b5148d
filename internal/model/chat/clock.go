package chat

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Clock mints strictly increasing millisecond stamps for one scope. A stamp
// is never lower than the previous one, even if the wall clock steps back or two
// stamps are requested within the same millisecond.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewClock returns a Clock reading from now. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Now returns the current wall time in milliseconds without advancing the clock.
func (c *Clock) Now() int64 {
	return c.now().UnixMilli()
}

// Next returns the next stamp.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	stamp := c.now().UnixMilli()
	if stamp <= c.last {
		stamp = c.last + 1
	}
	c.last = stamp
	return stamp
}

// NewMessage mints a message whose id is its timestamp.
func (c *Clock) NewMessage(role Role, text string) Message {
	stamp := c.Next()
	return Message{
		ID:        strconv.FormatInt(stamp, 10),
		Role:      role,
		Text:      text,
		Timestamp: stamp,
	}
}

// NewSessionID mints a session identifier.
func (c *Clock) NewSessionID() (string, int64) {
	stamp := c.Next()
	return fmt.Sprintf("session_%d", stamp), stamp
}
