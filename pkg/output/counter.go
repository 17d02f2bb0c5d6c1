package output

// Counter hands out the cross-reference numbers that key allele groups.
// The value only moves forward, by one per written group. It is owned by a
// single processor and is not safe for concurrent use.
type Counter struct {
	next uint64
}

// NewCounter returns a counter whose first value is start.
func NewCounter(start uint64) *Counter {
	return &Counter{next: start}
}

// Peek returns the value the next group will be written with.
func (c *Counter) Peek() uint64 {
	return c.next
}

// Advance consumes the current value and returns it.
func (c *Counter) Advance() uint64 {
	v := c.next
	c.next++
	return v
}
