// Package dawnwire is the runtime half of the wire protocol: object id
// bookkeeping on both sides, a schema-driven command serializer, and the
// Client and Server endpoints that exchange command streams.
//
// A schema is produced by the wiregen package. Both ends must be built from
// the same schema, since command wire ids are positions in its sorted buckets.
package dawnwire

import "fmt"

// ObjectID identifies an object within its object type. Zero is the null id.
type ObjectID uint32

// ObjectGeneration distinguishes successive objects that reuse one id.
type ObjectGeneration uint32

// ObjectHandle is an id paired with the generation it was allocated at.
type ObjectHandle struct {
	ID         ObjectID
	Generation ObjectGeneration
}

// IsNull reports whether h refers to no object.
func (h ObjectHandle) IsNull() bool { return h.ID == 0 }

func (h ObjectHandle) String() string {
	return fmt.Sprintf("%d@%d", h.ID, h.Generation)
}

// Builder callback status values carried by "<builder> error callback".
const (
	BuilderStatusSuccess uint32 = 0
	BuilderStatusError   uint32 = 1
	BuilderStatusUnknown uint32 = 2
)
