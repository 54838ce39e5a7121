package ir

import "fmt"

// Category identifies the kind of a type descriptor. The set is closed; every
// Category has exactly one descriptor type implementing TypeDescriptor.
type Category int

const (
	CategoryPrimitive       Category = iota // Fixed-width scalar (uint32_t, float, ...)
	CategoryNative                          // Opaque native type (void *, ObjectHandle, ...)
	CategoryNativelyDefined                 // Type only meaningful in-process; never on the wire
	CategoryEnum
	CategoryBitmask
	CategoryObject
	CategoryStructure
	CategoryCommand       // client -> server record
	CategoryReturnCommand // server -> client record
)

// Categories lists every Category in declaration order.
var Categories = []Category{
	CategoryPrimitive,
	CategoryNative,
	CategoryNativelyDefined,
	CategoryEnum,
	CategoryBitmask,
	CategoryObject,
	CategoryStructure,
	CategoryCommand,
	CategoryReturnCommand,
}

// String returns the description file spelling of the category.
func (c Category) String() string {
	switch c {
	case CategoryPrimitive:
		return "primitive"
	case CategoryNative:
		return "native"
	case CategoryNativelyDefined:
		return "natively defined"
	case CategoryEnum:
		return "enum"
	case CategoryBitmask:
		return "bitmask"
	case CategoryObject:
		return "object"
	case CategoryStructure:
		return "structure"
	case CategoryCommand:
		return "command"
	case CategoryReturnCommand:
		return "return command"
	default:
		return "unknown"
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown category %q", ErrInvalidDescription, s)
}

// TypeDescriptor is implemented by every entity in the type table.
type TypeDescriptor interface {
	// Category returns the descriptor category for type switching.
	Category() Category

	// TypeName returns the entity name.
	TypeName() Name

	// Ensure only types in this package can implement TypeDescriptor.
	sealed()
}

// PrimitiveType is a fixed-width scalar.
type PrimitiveType struct {
	Name Name
}

func (d *PrimitiveType) Category() Category { return CategoryPrimitive }
func (d *PrimitiveType) TypeName() Name     { return d.Name }
func (*PrimitiveType) sealed()              {}

// NativeType is an opaque type the wire runtime knows by name.
type NativeType struct {
	Name Name
}

func (d *NativeType) Category() Category { return CategoryNative }
func (d *NativeType) TypeName() Name     { return d.Name }
func (*NativeType) sealed()              {}

// NativelyDefinedType marks in-process only types. Methods that mention one
// are excluded from the wire.
type NativelyDefinedType struct {
	Name Name
}

func (d *NativelyDefinedType) Category() Category { return CategoryNativelyDefined }
func (d *NativelyDefinedType) TypeName() Name     { return d.Name }
func (*NativelyDefinedType) sealed()              {}

// EnumValue is one named constant of an enum or bitmask.
type EnumValue struct {
	Name  Name
	Value uint64
}

// EnumType is an enumeration encoded as uint32 on the wire.
type EnumType struct {
	Name   Name
	Values []EnumValue
}

func (d *EnumType) Category() Category { return CategoryEnum }
func (d *EnumType) TypeName() Name     { return d.Name }
func (*EnumType) sealed()              {}

// BitmaskType is a set of flags encoded as uint32 on the wire.
type BitmaskType struct {
	Name   Name
	Values []EnumValue
}

func (d *BitmaskType) Category() Category { return CategoryBitmask }
func (d *BitmaskType) TypeName() Name     { return d.Name }
func (*BitmaskType) sealed()              {}

// ObjectType is an API object with methods.
type ObjectType struct {
	Name Name

	// Methods are the wire-representable candidates, in declaration order.
	Methods []*Method

	// NativeMethods mention a natively defined type and never reach the wire.
	NativeMethods []*Method

	// IsBuilder marks objects whose lifecycle ends in producing BuiltType.
	IsBuilder bool

	// BuiltType is set iff IsBuilder.
	BuiltType *ObjectType
}

func (d *ObjectType) Category() Category { return CategoryObject }
func (d *ObjectType) TypeName() Name     { return d.Name }
func (*ObjectType) sealed()              {}

// StructureType is a plain record of members.
type StructureType struct {
	Name    Name
	Members []*RecordMember

	// Extensible is "", "in" or "out" for chain roots.
	Extensible string

	// Chained is "", "in" or "out" for chain extensions.
	Chained string
}

func (d *StructureType) Category() Category { return CategoryStructure }
func (d *StructureType) TypeName() Name     { return d.Name }
func (*StructureType) sealed()              {}

// Method belongs to an ObjectType.
type Method struct {
	Name       Name
	ReturnType TypeDescriptor
	Arguments  []*RecordMember
}

// ReturnsVoid reports whether the method returns the void native type.
func (m *Method) ReturnsVoid() bool {
	return m.ReturnType != nil && m.ReturnType.TypeName().Canonical() == "void"
}

// ReturnsObject reports whether the method returns an object.
func (m *Method) ReturnsObject() bool {
	return m.ReturnType != nil && m.ReturnType.Category() == CategoryObject
}

// Members returns the record members of structures and commands, and nil for
// every other descriptor.
func Members(t TypeDescriptor) []*RecordMember {
	switch d := t.(type) {
	case *StructureType:
		return d.Members
	case *CommandType:
		return d.Members
	default:
		return nil
	}
}
