package webui

import "sync"

// CircularBuffer is a fixed-capacity FIFO that overwrites its oldest
// element when full. The server keeps the most recent status events in
// one so a newly connected websocket client can be caught up.
//
// Thread-safe.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	data     []T
	capacity int
	size     int
	head     int // index where the next element is written
	tail     int // index of the oldest element
}

// NewCircularBuffer creates a buffer. Panics if capacity < 1.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity < 1 {
		panic("CircularBuffer capacity must be at least 1")
	}
	return &CircularBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends item, evicting the oldest element when full.
func (b *CircularBuffer[T]) Push(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	} else {
		b.tail = (b.tail + 1) % b.capacity
	}
}

// GetAll returns every element, oldest first.
func (b *CircularBuffer[T]) GetAll() []T {
	return b.GetLast(b.Capacity())
}

// GetLast returns up to n of the newest elements, oldest first.
func (b *CircularBuffer[T]) GetLast(n int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.size == 0 {
		return []T{}
	}
	if n > b.size {
		n = b.size
	}

	result := make([]T, n)
	startOffset := b.size - n
	for i := 0; i < n; i++ {
		result[i] = b.data[(b.tail+startOffset+i)%b.capacity]
	}
	return result
}

// Size returns the number of stored elements.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity is fixed at construction.
func (b *CircularBuffer[T]) Capacity() int {
	return b.capacity
}

// Clear drops every element.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	for i := range b.data {
		b.data[i] = zero
	}
	b.size, b.head, b.tail = 0, 0, 0
}
