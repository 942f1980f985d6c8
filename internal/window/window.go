// Package window implements the fixed-capacity FIFO of recent amplitude
// samples.
package window

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCapacity = errors.New("window capacity must be positive")
	ErrInvariant       = errors.New("window invariant violated")
)

// Buffer stores the most recent Cap() values in FIFO order on a ring. It is
// always full: construction and Reset fill every slot, and Append evicts the
// oldest value before inserting. Buffer is not safe for concurrent use; the
// owning session serializes access.
type Buffer struct {
	data []float64
	head int // index of the oldest value
	size int
	fill float64
}

// New creates a buffer of the given capacity with every slot set to fill.
func New(capacity int, fill float64) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	b := &Buffer{
		data: make([]float64, capacity),
		fill: fill,
	}
	b.Reset()
	return b, nil
}

// Append drops the oldest value when at capacity, then inserts v as the newest.
func (b *Buffer) Append(v float64) error {
	capacity := len(b.data)
	if b.size > capacity || b.head < 0 || b.head >= capacity {
		return fmt.Errorf("%w: size %d head %d capacity %d", ErrInvariant, b.size, b.head, capacity)
	}
	if b.size == capacity {
		b.data[b.head] = v
		b.head = (b.head + 1) % capacity
		return nil
	}
	b.data[(b.head+b.size)%capacity] = v
	b.size++
	return nil
}

// Snapshot returns a copy of the values, oldest first.
func (b *Buffer) Snapshot() []float64 {
	out := make([]float64, b.size)
	for i := range out {
		out[i] = b.data[(b.head+i)%len(b.data)]
	}
	return out
}

// Reset restores a full buffer of the fill value.
func (b *Buffer) Reset() {
	for i := range b.data {
		b.data[i] = b.fill
	}
	b.head = 0
	b.size = len(b.data)
}

// Clear empties the buffer without touching capacity.
func (b *Buffer) Clear() {
	b.head = 0
	b.size = 0
}

// Fill overwrites every slot with value(i), i counting from the oldest.
func (b *Buffer) Fill(value func(i int) float64) {
	for i := range b.data {
		b.data[i] = value(i)
	}
	b.head = 0
	b.size = len(b.data)
}

// PerturbTail rewrites the newest n values in place with f(i, v), where i
// is the position within the tail (0 is the oldest of the n). Length is
// unchanged. It returns how many values were rewritten.
func (b *Buffer) PerturbTail(n int, f func(i int, v float64) float64) int {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return 0
	}
	start := b.size - n
	for i := 0; i < n; i++ {
		idx := (b.head + start + i) % len(b.data)
		b.data[idx] = f(i, b.data[idx])
	}
	return n
}

// Latest returns the newest value and true, or 0 and false when empty.
func (b *Buffer) Latest() (float64, bool) {
	if b.size == 0 {
		return 0, false
	}
	return b.data[(b.head+b.size-1)%len(b.data)], true
}

func (b *Buffer) Len() int { return b.size }

func (b *Buffer) Cap() int { return len(b.data) }
