package dawnwire

import "sync"

// maxObjectIDGap bounds how far past the current end of a table a new id may
// land. Clients allocate ids densely, so a larger jump is a corrupt stream.
const maxObjectIDGap = 4096

type knownSlot[T any] struct {
	object     T
	generation ObjectGeneration
	allocated  bool
	used       bool
}

// KnownObjects tracks the server side objects of one object type, indexed by
// the ids the client chose. It is safe for concurrent use.
type KnownObjects[T any] struct {
	mu    sync.Mutex
	slots []knownSlot[T] // slots[0] is the null id
}

// NewKnownObjects returns an empty table.
func NewKnownObjects[T any]() *KnownObjects[T] {
	return &KnownObjects[T]{slots: make([]knownSlot[T], 1)}
}

// Allocate reserves h.ID. It fails for the null id, for an id that is still
// allocated, and for a generation that is not newer than the previous
// occupant of the id. An id far beyond the table's end is a fatal error.
func (k *KnownObjects[T]) Allocate(h ObjectHandle) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.allocateLocked(h)
}

func (k *KnownObjects[T]) allocateLocked(h ObjectHandle) error {
	if h.ID == 0 {
		return NewError(CodeInvalidArgument, "cannot allocate the null object id")
	}
	if uint64(h.ID) >= uint64(len(k.slots))+maxObjectIDGap {
		return Errorf(CodeFatal, "object id %d is too far past the %d known ids", h.ID, len(k.slots)).
			WithDetail("id", uint32(h.ID))
	}
	for int(h.ID) >= len(k.slots) {
		k.slots = append(k.slots, knownSlot[T]{})
	}
	slot := &k.slots[h.ID]
	if slot.allocated {
		return Errorf(CodeInvalidArgument, "object id %d is already allocated", h.ID).
			WithDetail("id", uint32(h.ID))
	}
	if slot.used && h.Generation <= slot.generation {
		return Errorf(CodeStaleHandle, "generation %d of object id %d is not newer than %d", h.Generation, h.ID, slot.generation).
			WithDetails(map[string]any{"id": uint32(h.ID), "generation": uint32(h.Generation)})
	}
	var zero T
	*slot = knownSlot[T]{object: zero, generation: h.Generation, allocated: true, used: true}
	return nil
}

// Set replaces the object stored at an allocated id.
func (k *KnownObjects[T]) Set(id ObjectID, obj T) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if int(id) >= len(k.slots) || !k.slots[id].allocated {
		return false
	}
	k.slots[id].object = obj
	return true
}

// Inject allocates h and stores obj in one step. Used for root objects that
// exist before any command creates them.
func (k *KnownObjects[T]) Inject(h ObjectHandle, obj T) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.allocateLocked(h); err != nil {
		return err
	}
	k.slots[h.ID].object = obj
	return nil
}

// Get returns the object at id, and false if id is not allocated.
func (k *KnownObjects[T]) Get(id ObjectID) (T, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var zero T
	if id == 0 || int(id) >= len(k.slots) || !k.slots[id].allocated {
		return zero, false
	}
	return k.slots[id].object, true
}

// GetHandle is like Get but also requires the generation to match.
func (k *KnownObjects[T]) GetHandle(h ObjectHandle) (T, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var zero T
	if h.ID == 0 || int(h.ID) >= len(k.slots) || !k.slots[h.ID].allocated {
		return zero, Errorf(CodeInvalidArgument, "unknown object id %d", h.ID)
	}
	slot := k.slots[h.ID]
	if slot.generation != h.Generation {
		return zero, Errorf(CodeStaleHandle, "object %v is stale, current generation is %d", h, slot.generation)
	}
	return slot.object, nil
}

// Free releases id and returns the object it held.
func (k *KnownObjects[T]) Free(id ObjectID) (T, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var zero T
	if id == 0 || int(id) >= len(k.slots) || !k.slots[id].allocated {
		return zero, false
	}
	obj := k.slots[id].object
	k.slots[id].object = zero
	k.slots[id].allocated = false
	return obj, true
}

// Find returns the id of the first allocated object matching fn.
func (k *KnownObjects[T]) Find(fn func(T) bool) (ObjectID, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i := 1; i < len(k.slots); i++ {
		if k.slots[i].allocated && fn(k.slots[i].object) {
			return ObjectID(i), true
		}
	}
	return 0, false
}

// Len returns the number of allocated ids.
func (k *KnownObjects[T]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	n := 0
	for i := 1; i < len(k.slots); i++ {
		if k.slots[i].allocated {
			n++
		}
	}
	return n
}
