package ir

// CommandType is a wire record: a command (client -> server) or a return
// command (server -> client).
//
// Members is one flat, ordered list. Inputs and outputs are told apart by
// RecordMember.IsReturnValue; see Inputs and Outputs.
type CommandType struct {
	Name Name

	// Kind is CategoryCommand or CategoryReturnCommand.
	Kind Category

	Members []*RecordMember

	// DerivedObject is set for commands synthesized from a method and for
	// builder error callbacks.
	DerivedObject *ObjectType

	// DerivedMethod is set only for commands synthesized from a method.
	DerivedMethod *Method

	// FixedSize is the header plus the fixed-width part of every member.
	// Computed by UpdateMetadata.
	FixedSize int

	// Serializable is false when some member has no wire encoding.
	// Computed by UpdateMetadata.
	Serializable bool
}

// NewCommand returns a command of the given kind.
func NewCommand(kind Category, name Name, members []*RecordMember) *CommandType {
	return &CommandType{Name: name, Kind: kind, Members: members}
}

func (d *CommandType) Category() Category { return d.Kind }
func (d *CommandType) TypeName() Name     { return d.Name }
func (*CommandType) sealed()              {}

// Inputs returns members that are not return values.
func (d *CommandType) Inputs() []*RecordMember {
	var out []*RecordMember
	for _, m := range d.Members {
		if !m.IsReturnValue {
			out = append(out, m)
		}
	}
	return out
}

// Outputs returns members flagged as return values.
func (d *CommandType) Outputs() []*RecordMember {
	var out []*RecordMember
	for _, m := range d.Members {
		if m.IsReturnValue {
			out = append(out, m)
		}
	}
	return out
}

// Member returns the member with the given canonical name, or nil.
func (d *CommandType) Member(name string) *RecordMember {
	key := CanonicalKey(name)
	for _, m := range d.Members {
		if m.Name.Canonical() == key {
			return m
		}
	}
	return nil
}

// IsBuilderCallback reports whether this is a synthesized builder error callback.
func (d *CommandType) IsBuilderCallback() bool {
	return d.Kind == CategoryReturnCommand && d.DerivedObject != nil && d.DerivedMethod == nil
}

// UpdateMetadata recomputes FixedSize and Serializable.
func (d *CommandType) UpdateMetadata() {
	d.FixedSize = CommandHeaderSize
	d.Serializable = true
	for _, m := range d.Members {
		n, ok := MemberFixedSize(m)
		if !ok {
			d.Serializable = false
			continue
		}
		d.FixedSize += n
	}
}

// SerializationInfo is per-structure and per-command metadata computed once
// after the type graph is closed.
type SerializationInfo struct {
	// HasDawnObject is true when (de)serializing needs an object id resolver.
	HasDawnObject bool `json:"has_dawn_object"`
}
