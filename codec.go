package dawnwire

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/broady/dawnwire/wiregen/ir"
)

// ObjectIDProvider maps live objects to wire ids while serializing.
type ObjectIDProvider interface {
	ObjectID(t *ir.ObjectType, obj any) (ObjectID, error)
}

// ObjectIDResolver maps wire ids back to objects while deserializing.
type ObjectIDResolver interface {
	ResolveObject(t *ir.ObjectType, id ObjectID) (any, error)
}

func argErrorf(path, format string, args ...any) *Error {
	return Errorf(CodeInvalidArgument, path+": "+format, args...).WithDetail("member", path)
}

func truncated(path string) *Error {
	return Errorf(CodeFatal, "%s: command data is truncated", path).WithDetail("member", path)
}

// isByteType reports whether sibling-counted arrays of t travel as []byte.
func isByteType(t ir.TypeDescriptor) bool {
	p, ok := t.(*ir.PrimitiveType)
	if !ok {
		return false
	}
	switch p.Name.ConcatCase() {
	case "char", "uint8_t":
		return true
	}
	return false
}

// memberIndex returns the position of sibling in members.
func memberIndex(members []*ir.RecordMember, sibling *ir.RecordMember) int {
	for i, m := range members {
		if m == sibling {
			return i
		}
	}
	return -1
}

// toCount converts a decoded or caller supplied count value.
func toCount(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case int8:
		return uint64(n), n >= 0
	case int16:
		return uint64(n), n >= 0
	case int32:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case int:
		return uint64(n), n >= 0
	}
	return 0, false
}

type encoder struct {
	buf      []byte
	provider ObjectIDProvider
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }
func (e *encoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

func (e *encoder) members(owner string, members []*ir.RecordMember, values []any) error {
	if len(values) != len(members) {
		return argErrorf(owner, "got %d values for %d members", len(values), len(members))
	}
	for i, m := range members {
		if err := e.member(owner+"."+m.Name.Canonical(), m, values[i], members, values); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) member(path string, m *ir.RecordMember, v any, members []*ir.RecordMember, values []any) error {
	if m.Annotation == ir.AnnotationHandle {
		id, ok := v.(ObjectID)
		if !ok {
			return argErrorf(path, "want ObjectID, got %T", v)
		}
		e.u32(uint32(id))
		return nil
	}
	if !m.Annotation.IsPointer() {
		return e.value(path, m.Type, v, m.Optional)
	}

	if m.Optional {
		if v == nil {
			e.u8(0)
			return nil
		}
		e.u8(1)
	} else if v == nil {
		return argErrorf(path, "required pointer is nil")
	}

	switch m.Length.Kind {
	case ir.LengthStrlen:
		s, ok := v.(string)
		if !ok {
			return argErrorf(path, "want string, got %T", v)
		}
		e.u64(uint64(len(s)))
		e.buf = append(e.buf, s...)
		return nil

	case ir.LengthConstant:
		if m.Length.Constant == 1 {
			return e.value(path, m.Type, v, false)
		}
		list, ok := v.([]any)
		if !ok || len(list) != m.Length.Constant {
			return argErrorf(path, "want %d elements", m.Length.Constant)
		}
		for _, elem := range list {
			if err := e.value(path, m.Type, elem, false); err != nil {
				return err
			}
		}
		return nil

	case ir.LengthMember:
		j := memberIndex(members, m.Length.Member)
		if j < 0 {
			return argErrorf(path, "length member %s not found", m.Length.Member.Name.Canonical())
		}
		count, ok := toCount(values[j])
		if !ok {
			return argErrorf(path, "length member %s is not a count: %T", m.Length.Member.Name.Canonical(), values[j])
		}
		if isByteType(m.Type) {
			b, ok := v.([]byte)
			if !ok {
				return argErrorf(path, "want []byte, got %T", v)
			}
			if uint64(len(b)) != count {
				return argErrorf(path, "has %d bytes, %s says %d", len(b), m.Length.Member.Name.Canonical(), count)
			}
			e.buf = append(e.buf, b...)
			return nil
		}
		list, ok := v.([]any)
		if !ok {
			return argErrorf(path, "want []any, got %T", v)
		}
		if uint64(len(list)) != count {
			return argErrorf(path, "has %d elements, %s says %d", len(list), m.Length.Member.Name.Canonical(), count)
		}
		for _, elem := range list {
			if err := e.value(path, m.Type, elem, false); err != nil {
				return err
			}
		}
		return nil
	}
	return argErrorf(path, "pointer member has no length")
}

func (e *encoder) value(path string, t ir.TypeDescriptor, v any, optional bool) error {
	switch d := t.(type) {
	case *ir.PrimitiveType:
		return e.primitive(path, d.Name.ConcatCase(), v)

	case *ir.NativeType:
		switch d.Name.ConcatCase() {
		case ir.NativeObjectHandle:
			h, ok := v.(ObjectHandle)
			if !ok {
				return argErrorf(path, "want ObjectHandle, got %T", v)
			}
			e.u32(uint32(h.ID))
			e.u32(uint32(h.Generation))
			return nil
		case ir.NativeObjectID:
			id, ok := v.(ObjectID)
			if !ok {
				return argErrorf(path, "want ObjectID, got %T", v)
			}
			e.u32(uint32(id))
			return nil
		case ir.NativeObjectType:
			n, ok := v.(uint32)
			if !ok {
				return argErrorf(path, "want uint32 object type, got %T", v)
			}
			e.u32(n)
			return nil
		}
		return argErrorf(path, "native type %s has no wire encoding", d.Name.Canonical())

	case *ir.EnumType, *ir.BitmaskType:
		n, ok := v.(uint32)
		if !ok {
			return argErrorf(path, "want uint32, got %T", v)
		}
		e.u32(n)
		return nil

	case *ir.ObjectType:
		if v == nil {
			if !optional {
				return argErrorf(path, "required %s is nil", d.Name.Canonical())
			}
			e.u32(0)
			return nil
		}
		if e.provider == nil {
			return Errorf(CodeResolverRequired, "%s: object reference needs an id provider", path)
		}
		id, err := e.provider.ObjectID(d, v)
		if err != nil {
			return err
		}
		e.u32(uint32(id))
		return nil

	case *ir.StructureType:
		values, ok := v.([]any)
		if !ok {
			return argErrorf(path, "want []any for structure %s, got %T", d.Name.Canonical(), v)
		}
		return e.members(path, d.Members, values)
	}
	return argErrorf(path, "%s %s has no wire encoding", t.Category(), t.TypeName().Canonical())
}

func (e *encoder) primitive(path, name string, v any) error {
	mismatch := func() error { return argErrorf(path, "want %s, got %T", name, v) }
	switch name {
	case "bool":
		b, ok := v.(bool)
		if !ok {
			return mismatch()
		}
		if b {
			e.u8(1)
		} else {
			e.u8(0)
		}
	case "char", "uint8_t":
		n, ok := v.(uint8)
		if !ok {
			return mismatch()
		}
		e.u8(n)
	case "int8_t":
		n, ok := v.(int8)
		if !ok {
			return mismatch()
		}
		e.u8(uint8(n))
	case "uint16_t":
		n, ok := v.(uint16)
		if !ok {
			return mismatch()
		}
		e.u16(n)
	case "int16_t":
		n, ok := v.(int16)
		if !ok {
			return mismatch()
		}
		e.u16(uint16(n))
	case "uint32_t":
		n, ok := v.(uint32)
		if !ok {
			return mismatch()
		}
		e.u32(n)
	case "int32_t":
		n, ok := v.(int32)
		if !ok {
			return mismatch()
		}
		e.u32(uint32(n))
	case "uint64_t", "size_t":
		n, ok := v.(uint64)
		if !ok {
			return mismatch()
		}
		e.u64(n)
	case "int64_t":
		n, ok := v.(int64)
		if !ok {
			return mismatch()
		}
		e.u64(uint64(n))
	case "float":
		f, ok := v.(float32)
		if !ok {
			return mismatch()
		}
		e.u32(math.Float32bits(f))
	case "double":
		f, ok := v.(float64)
		if !ok {
			return mismatch()
		}
		e.u64(math.Float64bits(f))
	default:
		return argErrorf(path, "primitive %s has no wire encoding", name)
	}
	return nil
}

type decoder struct {
	data     []byte
	off      int
	resolver ObjectIDResolver
}

func (d *decoder) remaining() int { return len(d.data) - d.off }

func (d *decoder) take(path string, n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, truncated(path)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) u8(path string) (uint8, error) {
	b, err := d.take(path, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u16(path string) (uint16, error) {
	b, err := d.take(path, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *decoder) u32(path string) (uint32, error) {
	b, err := d.take(path, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) u64(path string) (uint64, error) {
	b, err := d.take(path, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *decoder) members(owner string, members []*ir.RecordMember) ([]any, error) {
	values := make([]any, len(members))
	for i, m := range members {
		v, err := d.member(owner+"."+m.Name.Canonical(), m, members, values)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func (d *decoder) member(path string, m *ir.RecordMember, members []*ir.RecordMember, values []any) (any, error) {
	if m.Annotation == ir.AnnotationHandle {
		id, err := d.u32(path)
		return ObjectID(id), err
	}
	if !m.Annotation.IsPointer() {
		return d.value(path, m.Type, m.Optional)
	}

	if m.Optional {
		present, err := d.u8(path)
		if err != nil {
			return nil, err
		}
		if present == 0 {
			return nil, nil
		}
	}

	switch m.Length.Kind {
	case ir.LengthStrlen:
		n, err := d.u64(path)
		if err != nil {
			return nil, err
		}
		if n > uint64(d.remaining()) {
			return nil, truncated(path)
		}
		b, err := d.take(path, int(n))
		if err != nil {
			return nil, err
		}
		return string(b), nil

	case ir.LengthConstant:
		if m.Length.Constant == 1 {
			return d.value(path, m.Type, false)
		}
		return d.list(path, m.Type, uint64(m.Length.Constant))

	case ir.LengthMember:
		j := memberIndex(members, m.Length.Member)
		if j < 0 {
			return nil, argErrorf(path, "length member %s not found", m.Length.Member.Name.Canonical())
		}
		count, ok := toCount(values[j])
		if !ok {
			return nil, argErrorf(path, "length member %s is not a count: %T", m.Length.Member.Name.Canonical(), values[j])
		}
		if isByteType(m.Type) {
			if count > uint64(d.remaining()) {
				return nil, truncated(path)
			}
			b, err := d.take(path, int(count))
			if err != nil {
				return nil, err
			}
			return bytes.Clone(b), nil
		}
		return d.list(path, m.Type, count)
	}
	return nil, argErrorf(path, "pointer member has no length")
}

// maxEmptyElements bounds lists whose element type has no wire bytes, since
// the remaining input cannot bound them.
const maxEmptyElements = 1 << 16

func (d *decoder) list(path string, t ir.TypeDescriptor, count uint64) ([]any, error) {
	// Reject counts the remaining bytes cannot hold before allocating.
	// Elements that encode to nothing get a fixed ceiling instead.
	size, ok := ir.ValueSize(t)
	switch {
	case !ok:
		size = 1
	case size == 0:
		if count > maxEmptyElements {
			return nil, Errorf(CodeFatal, "%s: %d zero-size elements exceeds the limit of %d", path, count, maxEmptyElements).
				WithDetail("member", path)
		}
	}
	if size > 0 && count > uint64(d.remaining()/size) {
		return nil, truncated(path)
	}
	list := make([]any, count)
	for i := range list {
		v, err := d.value(path, t, false)
		if err != nil {
			return nil, err
		}
		list[i] = v
	}
	return list, nil
}

func (d *decoder) value(path string, t ir.TypeDescriptor, optional bool) (any, error) {
	switch desc := t.(type) {
	case *ir.PrimitiveType:
		return d.primitive(path, desc.Name.ConcatCase())

	case *ir.NativeType:
		switch desc.Name.ConcatCase() {
		case ir.NativeObjectHandle:
			id, err := d.u32(path)
			if err != nil {
				return nil, err
			}
			gen, err := d.u32(path)
			if err != nil {
				return nil, err
			}
			return ObjectHandle{ID: ObjectID(id), Generation: ObjectGeneration(gen)}, nil
		case ir.NativeObjectID:
			id, err := d.u32(path)
			return ObjectID(id), err
		case ir.NativeObjectType:
			return d.u32(path)
		}
		return nil, argErrorf(path, "native type %s has no wire encoding", desc.Name.Canonical())

	case *ir.EnumType, *ir.BitmaskType:
		return d.u32(path)

	case *ir.ObjectType:
		id, err := d.u32(path)
		if err != nil {
			return nil, err
		}
		if id == 0 {
			if !optional {
				return nil, argErrorf(path, "required %s is null", desc.Name.Canonical())
			}
			return nil, nil
		}
		if d.resolver == nil {
			return nil, Errorf(CodeResolverRequired, "%s: object reference needs an id resolver", path)
		}
		return d.resolver.ResolveObject(desc, ObjectID(id))

	case *ir.StructureType:
		return d.members(path, desc.Members)
	}
	return nil, argErrorf(path, "%s %s has no wire encoding", t.Category(), t.TypeName().Canonical())
}

func (d *decoder) primitive(path, name string) (any, error) {
	switch name {
	case "bool":
		b, err := d.u8(path)
		return b != 0, err
	case "char", "uint8_t":
		return d.u8(path)
	case "int8_t":
		b, err := d.u8(path)
		return int8(b), err
	case "uint16_t":
		return d.u16(path)
	case "int16_t":
		n, err := d.u16(path)
		return int16(n), err
	case "uint32_t":
		return d.u32(path)
	case "int32_t":
		n, err := d.u32(path)
		return int32(n), err
	case "uint64_t", "size_t":
		return d.u64(path)
	case "int64_t":
		n, err := d.u64(path)
		return int64(n), err
	case "float":
		n, err := d.u32(path)
		return math.Float32frombits(n), err
	case "double":
		n, err := d.u64(path)
		return math.Float64frombits(n), err
	}
	return nil, argErrorf(path, "primitive %s has no wire encoding", name)
}
