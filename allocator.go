package dawnwire

import "sync"

type allocatorSlot[T any] struct {
	object     T
	generation ObjectGeneration
	live       bool
}

// ObjectAllocator hands out client side ids for one object type.
// Ids start at 1. Freed ids are reused last-in first-out, and every reuse
// bumps the generation so the server can reject stale references.
// It is safe for concurrent use.
type ObjectAllocator[T any] struct {
	mu    sync.Mutex
	slots []allocatorSlot[T] // slots[0] is the null id
	free  []ObjectID
}

// NewObjectAllocator returns an empty allocator.
func NewObjectAllocator[T any]() *ObjectAllocator[T] {
	return &ObjectAllocator[T]{slots: make([]allocatorSlot[T], 1)}
}

// New stores obj and returns its handle.
func (a *ObjectAllocator[T]) New(obj T) ObjectHandle {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		slot := &a.slots[id]
		slot.generation++
		slot.object = obj
		slot.live = true
		return ObjectHandle{ID: id, Generation: slot.generation}
	}

	id := ObjectID(len(a.slots))
	a.slots = append(a.slots, allocatorSlot[T]{object: obj, live: true})
	return ObjectHandle{ID: id}
}

// Free releases id for reuse. It returns false if id is not live.
func (a *ObjectAllocator[T]) Free(id ObjectID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id == 0 || int(id) >= len(a.slots) || !a.slots[id].live {
		return false
	}
	var zero T
	a.slots[id].object = zero
	a.slots[id].live = false
	a.free = append(a.free, id)
	return true
}

// Get returns the live object with id, or the zero value when id is out of
// range or freed.
func (a *ObjectAllocator[T]) Get(id ObjectID) T {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	if int(id) >= len(a.slots) || !a.slots[id].live {
		return zero
	}
	return a.slots[id].object
}

// Generation returns the current generation of id.
func (a *ObjectAllocator[T]) Generation(id ObjectID) ObjectGeneration {
	a.mu.Lock()
	defer a.mu.Unlock()

	if int(id) >= len(a.slots) {
		return 0
	}
	return a.slots[id].generation
}

// Len returns the number of live objects.
func (a *ObjectAllocator[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots) - 1 - len(a.free)
}
