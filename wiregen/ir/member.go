package ir

import "fmt"

// Annotation describes how a member is passed.
type Annotation int

const (
	AnnotationValue         Annotation = iota // Passed by value
	AnnotationConstPointer                    // const T*
	AnnotationMutablePointer                  // T*
	AnnotationArray                           // const T* const*, an array of pointers
	AnnotationHandle                          // Only an opaque object id is transported
)

// String returns the description file spelling of the annotation.
func (a Annotation) String() string {
	switch a {
	case AnnotationValue:
		return "value"
	case AnnotationConstPointer:
		return "const*"
	case AnnotationMutablePointer:
		return "*"
	case AnnotationArray:
		return "const*const*"
	case AnnotationHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// ParseAnnotation is the inverse of Annotation.String. The empty string is
// AnnotationValue.
func ParseAnnotation(s string) (Annotation, error) {
	switch s {
	case "", "value":
		return AnnotationValue, nil
	case "const*":
		return AnnotationConstPointer, nil
	case "*":
		return AnnotationMutablePointer, nil
	case "const*const*":
		return AnnotationArray, nil
	case "handle":
		return AnnotationHandle, nil
	}
	return 0, fmt.Errorf("%w: unknown annotation %q", ErrInvalidMember, s)
}

// IsPointer reports whether the member is transported through a pointer.
func (a Annotation) IsPointer() bool {
	return a == AnnotationConstPointer || a == AnnotationMutablePointer || a == AnnotationArray
}

// LengthKind selects how many elements a pointer member carries.
type LengthKind int

const (
	LengthNone     LengthKind = iota // Value and handle members
	LengthConstant                   // A fixed element count
	LengthStrlen                     // Null-terminated; computed by a terminator scan
	LengthMember                     // Count held by a preceding sibling member
)

// String returns a short description of the length kind.
func (k LengthKind) String() string {
	switch k {
	case LengthNone:
		return "none"
	case LengthConstant:
		return "constant"
	case LengthStrlen:
		return "strlen"
	case LengthMember:
		return "member"
	default:
		return "unknown"
	}
}

// Length is the element count strategy of a pointer member.
type Length struct {
	Kind LengthKind

	// Constant is the element count when Kind is LengthConstant.
	Constant int

	// Member is the sibling holding the count when Kind is LengthMember.
	Member *RecordMember
}

// RecordMember is one field of a structure or command, or one method argument.
type RecordMember struct {
	Name       Name
	Type       TypeDescriptor
	Annotation Annotation
	Optional   bool

	// IsReturnValue marks outputs of a command (the result handle).
	IsReturnValue bool

	Length Length

	// HandleType is the object type an ObjectHandle or handle-annotated
	// member stands in for.
	HandleType *ObjectType
}

// NewMember returns a value-annotated member.
func NewMember(name Name, typ TypeDescriptor) *RecordMember {
	return &RecordMember{Name: name, Type: typ, Annotation: AnnotationValue}
}

// SetHandleType records the object type this member identifies.
func (m *RecordMember) SetHandleType(t *ObjectType) {
	m.HandleType = t
}

// IsObjectReference reports whether the member carries a live object
// reference, which needs an id resolver to (de)serialize.
func (m *RecordMember) IsObjectReference() bool {
	return m.Type != nil && m.Type.Category() == CategoryObject && m.Annotation != AnnotationHandle
}
