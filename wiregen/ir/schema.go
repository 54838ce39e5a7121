package ir

import "sort"

// Schema is the frozen output of a generation pass.
type Schema struct {
	// Types is the type table extended with every command and return command.
	Types *Table

	// Commands are client -> server records sorted by canonical name.
	// The index of a command in this slice is its wire id.
	Commands []*CommandType

	// ReturnCommands are server -> client records sorted by canonical name.
	ReturnCommands []*CommandType

	// Structures in dependency order (a structure follows the structures it holds).
	Structures []*StructureType

	// SerializationInfo is keyed by canonical structure or command name.
	SerializationInfo map[string]SerializationInfo

	// Params holds underscore-prefixed schema-level parameters, keyed without
	// the underscore.
	Params map[string]any

	// Warnings contains non-fatal issues encountered during generation.
	Warnings []Warning
}

// Warning represents a non-fatal issue encountered during generation.
type Warning struct {
	// Code is a machine-readable warning identifier.
	Code string

	// Message is a human-readable description.
	Message string

	// TypeName is the canonical name of the entity that triggered the warning.
	TypeName string
}

// Warning codes.
const (
	WarnUnsupportedMethod = "unsupported_method"
	WarnClientSideMethod  = "client_side_method"
)

// AddWarning adds a warning to the schema.
func (s *Schema) AddWarning(w Warning) {
	s.Warnings = append(s.Warnings, w)
}

// ByCategory returns the command bucket for CategoryCommand or
// CategoryReturnCommand, and nil for any other category.
func (s *Schema) ByCategory(c Category) []*CommandType {
	switch c {
	case CategoryCommand:
		return s.Commands
	case CategoryReturnCommand:
		return s.ReturnCommands
	default:
		return nil
	}
}

// FindCommand looks up a command or return command by name. Returns nil if
// not found.
func (s *Schema) FindCommand(name string) *CommandType {
	d, ok := s.Types.Lookup(name)
	if !ok {
		return nil
	}
	cmd, _ := d.(*CommandType)
	return cmd
}

// FindMethodCommand returns the command synthesized from obj's method, or nil.
func (s *Schema) FindMethodCommand(obj *ObjectType, method string) *CommandType {
	key := CanonicalKey(method)
	for _, c := range s.Commands {
		if c.DerivedObject == obj && c.DerivedMethod != nil && c.DerivedMethod.Name.Canonical() == key {
			return c
		}
	}
	return nil
}

// BuilderCallback returns the error callback return command of builder obj.
func (s *Schema) BuilderCallback(obj *ObjectType) *CommandType {
	for _, c := range s.ReturnCommands {
		if c.IsBuilderCallback() && c.DerivedObject == obj {
			return c
		}
	}
	return nil
}

// CommandID returns the wire id of cmd within its bucket.
func (s *Schema) CommandID(cmd *CommandType) (uint32, bool) {
	bucket := s.ByCategory(cmd.Kind)
	i := sort.Search(len(bucket), func(i int) bool {
		return bucket[i].Name.Canonical() >= cmd.Name.Canonical()
	})
	if i < len(bucket) && bucket[i] == cmd {
		return uint32(i), true
	}
	return 0, false
}

// CommandByID returns the command with wire id in bucket c.
func (s *Schema) CommandByID(c Category, id uint32) *CommandType {
	bucket := s.ByCategory(c)
	if int(id) >= len(bucket) {
		return nil
	}
	return bucket[id]
}

// Info returns the serialization info of a structure or command.
func (s *Schema) Info(name string) (SerializationInfo, bool) {
	info, ok := s.SerializationInfo[CanonicalKey(name)]
	return info, ok
}

// ObjectTypeIndex returns the position of obj among the sorted objects.
// This is the value of the ObjectType native on the wire.
func (s *Schema) ObjectTypeIndex(obj *ObjectType) (uint32, bool) {
	for i, o := range s.Types.Objects() {
		if o == obj {
			return uint32(i), true
		}
	}
	return 0, false
}

// Validate checks the schema for structural issues.
// Returns all validation errors found (not just the first).
func (s *Schema) Validate() []error {
	var errors []*ValidationError

	for _, c := range []Category{CategoryCommand, CategoryReturnCommand} {
		bucket := s.ByCategory(c)
		for i, cmd := range bucket {
			if cmd.Kind != c {
				errors = append(errors, &ValidationError{
					Code:    "wrong_bucket",
					Message: cmd.Name.Canonical() + " is a " + cmd.Kind.String() + " in the " + c.String() + " bucket",
				})
			}
			if i > 0 && bucket[i-1].Name.Canonical() >= cmd.Name.Canonical() {
				errors = append(errors, &ValidationError{
					Code:    "unsorted_commands",
					Message: c.String() + " bucket not strictly ordered at " + cmd.Name.Canonical(),
				})
			}
			if _, ok := s.SerializationInfo[cmd.Name.Canonical()]; !ok {
				errors = append(errors, &ValidationError{
					Code:    "missing_serialization_info",
					Message: "no serialization info for " + cmd.Name.Canonical(),
				})
			}
			if registered, ok := s.Types.Lookup(cmd.Name.Canonical()); !ok || registered != cmd {
				errors = append(errors, &ValidationError{
					Code:    "unregistered_command",
					Message: cmd.Name.Canonical() + " is not registered in the type table",
				})
			}
			errors = append(errors, validateMembers(cmd.Name.Canonical(), cmd.Members)...)
		}
	}

	for _, st := range s.Types.Structures() {
		if _, ok := s.SerializationInfo[st.Name.Canonical()]; !ok {
			errors = append(errors, &ValidationError{
				Code:    "missing_serialization_info",
				Message: "no serialization info for " + st.Name.Canonical(),
			})
		}
		errors = append(errors, validateMembers(st.Name.Canonical(), st.Members)...)
	}

	// Convert ValidationErrors to regular errors
	var result []error
	for _, e := range errors {
		result = append(result, e)
	}
	return result
}

// validateMembers checks handle targets, type references and length siblings.
func validateMembers(owner string, members []*RecordMember) []*ValidationError {
	var errors []*ValidationError
	seen := make(map[*RecordMember]bool)
	for _, m := range members {
		context := owner + "." + m.Name.Canonical()
		if m.Type == nil {
			errors = append(errors, &ValidationError{
				Code:    "missing_type_reference",
				Message: context + " has no type",
			})
		}
		if m.Annotation == AnnotationHandle && m.HandleType == nil {
			errors = append(errors, &ValidationError{
				Code:    "missing_handle_type",
				Message: context + " is a handle without a target type",
			})
		}
		if m.Length.Kind == LengthMember && !seen[m.Length.Member] {
			errors = append(errors, &ValidationError{
				Code:    "invalid_length_member",
				Message: context + " length member must be a preceding sibling",
			})
		}
		seen[m] = true
	}
	return errors
}
