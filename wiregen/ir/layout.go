package ir

// Wire layout constants shared by the metadata pass and the dawnwire runtime.
// All multi-byte values are little-endian.
const (
	// CommandHeaderSize is the {size uint32, id uint32} prefix of every command.
	CommandHeaderSize = 8

	// ObjectIDSize is the encoded size of an object id.
	ObjectIDSize = 4

	// ObjectHandleSize is an id followed by a generation.
	ObjectHandleSize = 8

	// EnumSize is the encoded size of enum and bitmask values.
	EnumSize = 4

	// StringLengthSize prefixes strlen members.
	StringLengthSize = 8

	// PresenceSize prefixes optional pointer members.
	PresenceSize = 1
)

// Well-known native type names.
const (
	NativeObjectHandle = "ObjectHandle"
	NativeObjectID     = "ObjectId"
	NativeObjectType   = "ObjectType"
	NativeVoid         = "void"
)

// PrimitiveSizes maps primitive type names to their encoded size.
var PrimitiveSizes = map[string]int{
	"bool":     1,
	"char":     1,
	"int8_t":   1,
	"uint8_t":  1,
	"int16_t":  2,
	"uint16_t": 2,
	"int32_t":  4,
	"uint32_t": 4,
	"int64_t":  8,
	"uint64_t": 8,
	"size_t":   8,
	"float":    4,
	"double":   8,
}

// ValueSize returns the encoded size of one value of t, and false if t has no
// fixed-size wire encoding.
func ValueSize(t TypeDescriptor) (int, bool) {
	return valueSize(t, map[string]bool{})
}

func valueSize(t TypeDescriptor, visiting map[string]bool) (int, bool) {
	switch d := t.(type) {
	case *PrimitiveType:
		n, ok := PrimitiveSizes[d.Name.ConcatCase()]
		return n, ok
	case *NativeType:
		switch d.Name.ConcatCase() {
		case NativeObjectHandle:
			return ObjectHandleSize, true
		case NativeObjectID, NativeObjectType:
			return ObjectIDSize, true
		}
		return 0, false
	case *EnumType, *BitmaskType:
		return EnumSize, true
	case *ObjectType:
		return ObjectIDSize, true
	case *StructureType:
		key := d.Name.Canonical()
		if visiting[key] {
			return 0, false
		}
		visiting[key] = true
		defer delete(visiting, key)
		total := 0
		for _, m := range d.Members {
			n, ok := memberFixedSize(m, visiting)
			if !ok {
				return 0, false
			}
			total += n
		}
		return total, true
	}
	return 0, false
}

// MemberFixedSize returns the number of bytes m always occupies, excluding
// any variable-length payload (string bytes, sibling-counted elements).
func MemberFixedSize(m *RecordMember) (int, bool) {
	return memberFixedSize(m, map[string]bool{})
}

func memberFixedSize(m *RecordMember, visiting map[string]bool) (int, bool) {
	if m.Annotation == AnnotationHandle {
		return ObjectIDSize, true
	}
	if !m.Annotation.IsPointer() {
		return valueSize(m.Type, visiting)
	}
	// An absent optional pointer is only its presence byte.
	if m.Optional {
		return PresenceSize, true
	}
	switch m.Length.Kind {
	case LengthStrlen:
		return StringLengthSize, true
	case LengthMember:
		return 0, true
	case LengthConstant:
		n, ok := valueSize(m.Type, visiting)
		if !ok {
			return 0, false
		}
		return n * m.Length.Constant, true
	}
	return 0, false
}
