package dawnwire

import (
	"encoding/binary"
	"math"

	"github.com/broady/dawnwire/wiregen/ir"
)

// Decoded is one command read from a command stream.
type Decoded struct {
	Command *ir.CommandType

	// Values holds one value per member, in member order.
	Values []any

	// Size is the number of bytes the command occupied, header included.
	Size int
}

// Serializer encodes and decodes the commands of one schema.
// It holds no mutable state and is safe for concurrent use.
type Serializer struct {
	schema *ir.Schema
}

// NewSerializer returns a Serializer for schema.
func NewSerializer(schema *ir.Schema) *Serializer {
	return &Serializer{schema: schema}
}

// Schema returns the schema the serializer was built for.
func (s *Serializer) Schema() *ir.Schema { return s.schema }

// needsObjects reports whether cmd holds object references.
func (s *Serializer) needsObjects(cmd *ir.CommandType) bool {
	info, ok := s.schema.Info(cmd.Name.Canonical())
	return !ok || info.HasDawnObject
}

// SerializeCommand encodes cmd with one value per member.
//
// The provider maps object member values to ids. It is only consulted when
// the command's serialization info says it holds objects, and is required
// then.
func (s *Serializer) SerializeCommand(cmd *ir.CommandType, values []any, provider ObjectIDProvider) ([]byte, error) {
	id, ok := s.schema.CommandID(cmd)
	if !ok {
		return nil, Errorf(CodeUnknownCommand, "%s %q is not part of the schema", cmd.Kind, cmd.Name.Canonical())
	}
	if !cmd.Serializable {
		return nil, Errorf(CodeInvalidArgument, "%s has members without a wire encoding", cmd.Name.Canonical())
	}
	if s.needsObjects(cmd) {
		if provider == nil {
			return nil, Errorf(CodeResolverRequired, "%s holds object references and needs an id provider", cmd.Name.Canonical())
		}
	} else {
		provider = nil
	}

	e := &encoder{buf: make([]byte, ir.CommandHeaderSize, max(cmd.FixedSize, ir.CommandHeaderSize)), provider: provider}
	if err := e.members(cmd.Name.Canonical(), cmd.Members, values); err != nil {
		return nil, err
	}
	if uint64(len(e.buf)) > math.MaxUint32 {
		return nil, Errorf(CodeInvalidArgument, "%s does not fit in a command (%d bytes)", cmd.Name.Canonical(), len(e.buf))
	}
	binary.LittleEndian.PutUint32(e.buf[0:4], uint32(len(e.buf)))
	binary.LittleEndian.PutUint32(e.buf[4:8], id)
	return e.buf, nil
}

// DeserializeCommand decodes the first command of data from the given bucket
// (ir.CategoryCommand or ir.CategoryReturnCommand).
//
// Malformed framing yields a CodeFatal error, since the stream cannot be
// resynchronized.
func (s *Serializer) DeserializeCommand(data []byte, bucket ir.Category, resolver ObjectIDResolver) (*Decoded, error) {
	if len(data) < ir.CommandHeaderSize {
		return nil, Errorf(CodeFatal, "command header needs %d bytes, have %d", ir.CommandHeaderSize, len(data))
	}
	size := binary.LittleEndian.Uint32(data[0:4])
	id := binary.LittleEndian.Uint32(data[4:8])
	if size < ir.CommandHeaderSize || uint64(size) > uint64(len(data)) {
		return nil, Errorf(CodeFatal, "command size %d is invalid for %d available bytes", size, len(data))
	}

	cmd := s.schema.CommandByID(bucket, id)
	if cmd == nil {
		return nil, Errorf(CodeUnknownCommand, "no %s with id %d", bucket, id).WithDetail("id", id)
	}
	if s.needsObjects(cmd) {
		if resolver == nil {
			return nil, Errorf(CodeResolverRequired, "%s holds object references and needs an id resolver", cmd.Name.Canonical())
		}
	} else {
		resolver = nil
	}

	d := &decoder{data: data[ir.CommandHeaderSize:size], resolver: resolver}
	values, err := d.members(cmd.Name.Canonical(), cmd.Members)
	if err != nil {
		return nil, err
	}
	if d.remaining() != 0 {
		return nil, Errorf(CodeFatal, "%s has %d trailing bytes", cmd.Name.Canonical(), d.remaining())
	}
	return &Decoded{Command: cmd, Values: values, Size: int(size)}, nil
}

// DeserializeAll decodes every command in data.
func (s *Serializer) DeserializeAll(data []byte, bucket ir.Category, resolver ObjectIDResolver) ([]*Decoded, error) {
	var out []*Decoded
	for len(data) > 0 {
		dec, err := s.DeserializeCommand(data, bucket, resolver)
		if err != nil {
			return out, err
		}
		out = append(out, dec)
		data = data[dec.Size:]
	}
	return out, nil
}
