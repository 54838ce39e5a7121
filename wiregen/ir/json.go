package ir

import "encoding/json"

// JSON serialization support for IR types.
// Descriptors include a "category" field for type discrimination; references
// between entities are written as canonical names, never nested.

// MarshalJSON writes the canonical form.
func (n Name) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Canonical())
}

func typeRef(t TypeDescriptor) string {
	if t == nil {
		return ""
	}
	return t.TypeName().Canonical()
}

func objectRef(o *ObjectType) string {
	if o == nil {
		return ""
	}
	return o.Name.Canonical()
}

// MarshalJSON implements json.Marshaler for RecordMember.
func (m *RecordMember) MarshalJSON() ([]byte, error) {
	var length any
	switch m.Length.Kind {
	case LengthStrlen:
		length = "strlen"
	case LengthConstant:
		length = m.Length.Constant
	case LengthMember:
		length = m.Length.Member.Name.Canonical()
	}
	return json.Marshal(&struct {
		Name          Name   `json:"name"`
		Type          string `json:"type"`
		Annotation    string `json:"annotation"`
		Optional      bool   `json:"optional,omitempty"`
		IsReturnValue bool   `json:"is_return_value,omitempty"`
		Length        any    `json:"length,omitempty"`
		HandleType    string `json:"handle_type,omitempty"`
	}{
		Name:          m.Name,
		Type:          typeRef(m.Type),
		Annotation:    m.Annotation.String(),
		Optional:      m.Optional,
		IsReturnValue: m.IsReturnValue,
		Length:        length,
		HandleType:    objectRef(m.HandleType),
	})
}

// MarshalJSON implements json.Marshaler for Method.
func (m *Method) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Name    Name            `json:"name"`
		Returns string          `json:"returns"`
		Args    []*RecordMember `json:"args,omitempty"`
	}{
		Name:    m.Name,
		Returns: typeRef(m.ReturnType),
		Args:    m.Arguments,
	})
}

// MarshalJSON implements json.Marshaler for CommandType.
func (d *CommandType) MarshalJSON() ([]byte, error) {
	var derivedMethod *Name
	if d.DerivedMethod != nil {
		derivedMethod = &d.DerivedMethod.Name
	}
	return json.Marshal(&struct {
		Category      string          `json:"category"`
		Name          Name            `json:"name"`
		UpperCamel    string          `json:"upper_camel"`
		Members       []*RecordMember `json:"members"`
		DerivedObject string          `json:"derived_object,omitempty"`
		DerivedMethod *Name           `json:"derived_method,omitempty"`
		FixedSize     int             `json:"fixed_size"`
		Serializable  bool            `json:"serializable"`
	}{
		Category:      d.Kind.String(),
		Name:          d.Name,
		UpperCamel:    d.Name.UpperCamel(),
		Members:       d.Members,
		DerivedObject: objectRef(d.DerivedObject),
		DerivedMethod: derivedMethod,
		FixedSize:     d.FixedSize,
		Serializable:  d.Serializable,
	})
}

// MarshalJSON implements json.Marshaler for ObjectType.
func (d *ObjectType) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Category      string    `json:"category"`
		Name          Name      `json:"name"`
		Methods       []*Method `json:"methods,omitempty"`
		NativeMethods []*Method `json:"native_methods,omitempty"`
		IsBuilder     bool      `json:"is_builder,omitempty"`
		BuiltType     string    `json:"built_type,omitempty"`
	}{
		Category:      d.Category().String(),
		Name:          d.Name,
		Methods:       d.Methods,
		NativeMethods: d.NativeMethods,
		IsBuilder:     d.IsBuilder,
		BuiltType:     objectRef(d.BuiltType),
	})
}

// MarshalJSON implements json.Marshaler for StructureType.
func (d *StructureType) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Category   string          `json:"category"`
		Name       Name            `json:"name"`
		Members    []*RecordMember `json:"members"`
		Extensible string          `json:"extensible,omitempty"`
		Chained    string          `json:"chained,omitempty"`
	}{
		Category:   d.Category().String(),
		Name:       d.Name,
		Members:    d.Members,
		Extensible: d.Extensible,
		Chained:    d.Chained,
	})
}

type valuesJSON struct {
	Category string      `json:"category"`
	Name     Name        `json:"name"`
	Values   []EnumValue `json:"values,omitempty"`
}

// MarshalJSON implements json.Marshaler for EnumType.
func (d *EnumType) MarshalJSON() ([]byte, error) {
	return json.Marshal(&valuesJSON{Category: d.Category().String(), Name: d.Name, Values: d.Values})
}

// MarshalJSON implements json.Marshaler for BitmaskType.
func (d *BitmaskType) MarshalJSON() ([]byte, error) {
	return json.Marshal(&valuesJSON{Category: d.Category().String(), Name: d.Name, Values: d.Values})
}

// MarshalJSON implements json.Marshaler for EnumValue.
func (v EnumValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Name  Name   `json:"name"`
		Value uint64 `json:"value"`
	}{Name: v.Name, Value: v.Value})
}

type leafJSON struct {
	Category string `json:"category"`
	Name     Name   `json:"name"`
}

// MarshalJSON implements json.Marshaler for PrimitiveType.
func (d *PrimitiveType) MarshalJSON() ([]byte, error) {
	return json.Marshal(&leafJSON{Category: d.Category().String(), Name: d.Name})
}

// MarshalJSON implements json.Marshaler for NativeType.
func (d *NativeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(&leafJSON{Category: d.Category().String(), Name: d.Name})
}

// MarshalJSON implements json.Marshaler for NativelyDefinedType.
func (d *NativelyDefinedType) MarshalJSON() ([]byte, error) {
	return json.Marshal(&leafJSON{Category: d.Category().String(), Name: d.Name})
}

// MarshalJSON implements json.Marshaler for Warning.
func (w Warning) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		TypeName string `json:"type_name,omitempty"`
	}{Code: w.Code, Message: w.Message, TypeName: w.TypeName})
}

// MarshalJSON writes the schema handed to renderers. Every slice is already
// in its deterministic order and maps are written with sorted keys, so the
// output is byte-for-byte stable for identical input.
func (s *Schema) MarshalJSON() ([]byte, error) {
	types := make([]TypeDescriptor, 0, s.Types.Len())
	for _, name := range s.Types.Names() {
		d, _ := s.Types.Lookup(name)
		types = append(types, d)
	}
	structures := make([]string, len(s.Structures))
	for i, st := range s.Structures {
		structures[i] = st.Name.Canonical()
	}
	return json.Marshal(&struct {
		Commands          []*CommandType               `json:"command"`
		ReturnCommands    []*CommandType               `json:"return command"`
		StructureOrder    []string                     `json:"structure_order"`
		SerializationInfo map[string]SerializationInfo `json:"serialization_info"`
		Types             []TypeDescriptor             `json:"types"`
		Params            map[string]any               `json:"params,omitempty"`
		Warnings          []Warning                    `json:"warnings,omitempty"`
	}{
		Commands:          s.Commands,
		ReturnCommands:    s.ReturnCommands,
		StructureOrder:    structures,
		SerializationInfo: s.SerializationInfo,
		Types:             types,
		Params:            s.Params,
		Warnings:          s.Warnings,
	})
}
