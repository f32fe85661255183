// Package deque provides a bounded FIFO queue on a ring buffer that evicts
// its oldest element when full.
package deque

// base rounds capacities up to a multiple of itself.
const base = 8

type Deque[T any] struct {
	items []T
	head  int
	size  int
}

func New[T any](capacity int) *Deque[T] {
	if capacity < 1 {
		capacity = 1
	}
	if remainder := capacity % base; remainder != 0 {
		capacity = capacity - remainder + base
	}
	return &Deque[T]{items: make([]T, capacity)}
}

func (d *Deque[T]) Size() int     { return d.size }
func (d *Deque[T]) Capacity() int { return len(d.items) }
func (d *Deque[T]) IsEmpty() bool { return d.size == 0 }
func (d *Deque[T]) IsFull() bool  { return d.size == len(d.items) }

func (d *Deque[T]) index(i int) int {
	return (d.head + i) % len(d.items)
}

// AddLast appends v and reports false when the deque is full.
func (d *Deque[T]) AddLast(v T) bool {
	if d.IsFull() {
		return false
	}
	d.items[d.index(d.size)] = v
	d.size++
	return true
}

// PushLast appends v, evicting the first element when full.
func (d *Deque[T]) PushLast(v T) (evicted T, ok bool) {
	if d.IsFull() {
		evicted, ok = d.RemoveFirst()
	}
	d.AddLast(v)
	return evicted, ok
}

func (d *Deque[T]) RemoveFirst() (T, bool) {
	var zero T
	if d.IsEmpty() {
		return zero, false
	}
	v := d.items[d.head]
	d.items[d.head] = zero
	d.head = d.index(1)
	d.size--
	return v, true
}

// Drain removes and returns all elements in order.
func (d *Deque[T]) Drain() []T {
	out := make([]T, 0, d.Size())
	for !d.IsEmpty() {
		v, _ := d.RemoveFirst()
		out = append(out, v)
	}
	return out
}
