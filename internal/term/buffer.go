package term

import "sync"

// RingBuffer keeps the last max bytes written, for scrollback capture. Safe
// for one writer and many readers.
type RingBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

// NewRingBuffer creates a buffer bounded at max bytes.
func NewRingBuffer(max int) *RingBuffer {
	if max <= 0 {
		max = 1
	}
	return &RingBuffer{max: max}
}

// Write appends p, discarding the oldest bytes beyond the bound. Implements
// io.Writer and never fails.
func (b *RingBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(p) >= b.max {
		b.buf = append(b.buf[:0], p[len(p)-b.max:]...)
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	if overflow := len(b.buf) - b.max; overflow > 0 {
		b.buf = append(b.buf[:0], b.buf[overflow:]...)
	}
	return len(p), nil
}

// Bytes returns a copy of the buffered data.
func (b *RingBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// Len returns the number of buffered bytes.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
