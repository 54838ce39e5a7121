package load

import (
	"fmt"
	"math"
	"strings"

	"github.com/broady/dawnwire/wiregen/ir"
)

// Linked is a fully resolved description: every member points at a
// descriptor of the frozen type table.
type Linked struct {
	Types *ir.Table

	// Structures in dependency order.
	Structures []*ir.StructureType

	// Declared are the wire description commands, sorted by canonical name.
	Declared []DeclaredCommand

	// Params merges API and wire parameters. Wire parameters win.
	Params map[string]any

	// ClientSideCommands as UpperCamel command names.
	ClientSideCommands []string
}

// DeclaredCommand is a wire-only command whose members are linked.
type DeclaredCommand struct {
	Name     ir.Name
	Category ir.Category
	Members  []*ir.RecordMember
}

// ScalarNatives are native entries that are really fixed-width primitives.
var ScalarNatives = map[string]bool{
	"bool":     true,
	"char":     true,
	"int8_t":   true,
	"uint8_t":  true,
	"int16_t":  true,
	"uint16_t": true,
	"int32_t":  true,
	"uint32_t": true,
	"int64_t":  true,
	"uint64_t": true,
	"size_t":   true,
	"float":    true,
	"double":   true,
}

// builtinNatives are registered when the description does not declare them.
var builtinNatives = []string{ir.NativeVoid, ir.NativeObjectHandle, ir.NativeObjectID, ir.NativeObjectType}

// Link resolves api (and wire, which may be nil) into a frozen table.
func Link(api *APIDescription, wire *WireDescription) (*Linked, error) {
	l := &linker{
		api:     api,
		builder: ir.NewTableBuilder(),
		entries: make(map[string]*Entry),
		objects: make(map[string]*ir.ObjectType),
		structs: make(map[string]*ir.StructureType),
	}
	if err := l.declare(); err != nil {
		return nil, err
	}
	if err := l.linkObjects(); err != nil {
		return nil, err
	}
	if err := l.linkStructures(); err != nil {
		return nil, err
	}

	linked := &Linked{Params: make(map[string]any)}
	for k, v := range api.Params {
		linked.Params[k] = v
	}
	if wire != nil {
		for _, wc := range wire.Commands {
			cmd, err := l.linkDeclared(wc)
			if err != nil {
				return nil, err
			}
			linked.Declared = append(linked.Declared, cmd)
		}
		for k, v := range wire.Params {
			linked.Params[k] = v
		}
		linked.ClientSideCommands = append(linked.ClientSideCommands, wire.ClientSideCommands...)
	}

	var structs []*ir.StructureType
	for _, key := range sortedKeys(l.structs) {
		structs = append(structs, l.structs[key])
	}
	sorted, err := ir.TopoSortStructures(structs)
	if err != nil {
		return nil, err
	}
	linked.Structures = sorted
	linked.Types = l.builder.Freeze()
	return linked, nil
}

type linker struct {
	api     *APIDescription
	builder *ir.TableBuilder
	entries map[string]*Entry
	objects map[string]*ir.ObjectType
	structs map[string]*ir.StructureType
}

// declare registers a shell descriptor for every entry.
func (l *linker) declare() error {
	for _, name := range sortedKeys(l.api.Entries) {
		e := l.api.Entries[name]
		d, err := shell(name, e)
		if err != nil {
			return err
		}
		if err := l.builder.Add(d); err != nil {
			return err
		}
		l.entries[d.TypeName().Canonical()] = e
		switch d := d.(type) {
		case *ir.ObjectType:
			l.objects[d.Name.Canonical()] = d
		case *ir.StructureType:
			l.structs[d.Name.Canonical()] = d
		}
	}
	for _, native := range builtinNatives {
		if _, ok := l.builder.Lookup(native); ok {
			continue
		}
		n, _ := ir.NativeName(native)
		if err := l.builder.Add(&ir.NativeType{Name: n}); err != nil {
			return err
		}
	}
	return nil
}

func shell(name string, e *Entry) (ir.TypeDescriptor, error) {
	category, err := ir.ParseCategory(e.Category)
	if err != nil {
		return nil, ir.Errorf(ir.PhaseLink, name, "%w", err)
	}
	if category == ir.CategoryNative && ScalarNatives[name] {
		category = ir.CategoryPrimitive
	}

	switch category {
	case ir.CategoryNative:
		n, err := ir.NativeName(name)
		if err != nil {
			return nil, ir.Errorf(ir.PhaseLink, name, "%w", err)
		}
		return &ir.NativeType{Name: n}, nil
	}

	n, err := ir.ParseName(name)
	if err != nil {
		return nil, ir.Errorf(ir.PhaseLink, name, "%w", err)
	}
	switch category {
	case ir.CategoryPrimitive:
		return &ir.PrimitiveType{Name: n}, nil
	case ir.CategoryNativelyDefined:
		return &ir.NativelyDefinedType{Name: n}, nil
	case ir.CategoryEnum, ir.CategoryBitmask:
		values, err := enumValues(name, e.Values)
		if err != nil {
			return nil, err
		}
		if category == ir.CategoryEnum {
			return &ir.EnumType{Name: n, Values: values}, nil
		}
		return &ir.BitmaskType{Name: n, Values: values}, nil
	case ir.CategoryObject:
		return &ir.ObjectType{Name: n}, nil
	case ir.CategoryStructure:
		return &ir.StructureType{Name: n, Extensible: extensible(e.Extensible), Chained: e.Chained}, nil
	}
	return nil, ir.Errorf(ir.PhaseLink, name, "%w: category %s cannot be declared", ir.ErrInvalidDescription, category)
}

func enumValues(owner string, raw []Value) ([]ir.EnumValue, error) {
	values := make([]ir.EnumValue, 0, len(raw))
	for _, v := range raw {
		n, err := ir.ParseName(v.Name)
		if err != nil {
			return nil, ir.Errorf(ir.PhaseLink, owner, "%w", err)
		}
		values = append(values, ir.EnumValue{Name: n, Value: v.Value})
	}
	return values, nil
}

func extensible(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
	}
	return ""
}

func (l *linker) linkObjects() error {
	for _, key := range sortedKeys(l.objects) {
		obj := l.objects[key]
		e := l.entries[obj.Name.Canonical()]
		for _, rm := range e.Methods {
			m, err := l.linkMethod(obj, rm)
			if err != nil {
				return err
			}
			if isNativeMethod(m) {
				obj.NativeMethods = append(obj.NativeMethods, m)
			} else {
				obj.Methods = append(obj.Methods, m)
			}
		}

		chunks := obj.Name.Chunks()
		obj.IsBuilder = chunks[len(chunks)-1] == "builder"
		if e.Builder != nil {
			obj.IsBuilder = *e.Builder
		}
	}

	// Built types are resolved once every object has its methods.
	for _, key := range sortedKeys(l.objects) {
		obj := l.objects[key]
		if !obj.IsBuilder {
			continue
		}
		built, err := l.builtType(obj)
		if err != nil {
			return err
		}
		obj.BuiltType = built
	}
	return nil
}

func (l *linker) linkMethod(obj *ir.ObjectType, rm Method) (*ir.Method, error) {
	entity := obj.Name.Canonical() + " " + ir.CanonicalKey(rm.Name)
	name, err := ir.ParseName(rm.Name)
	if err != nil {
		return nil, ir.Errorf(ir.PhaseLink, entity, "%w", err)
	}
	returns := rm.Returns
	if returns == "" {
		returns = ir.NativeVoid
	}
	ret, ok := l.builder.Lookup(returns)
	if !ok {
		return nil, ir.Errorf(ir.PhaseLink, entity, "%w: return type %q", ir.ErrUnresolvedType, returns)
	}
	args, err := l.linkMembers(entity, rm.Args)
	if err != nil {
		return nil, err
	}
	return &ir.Method{Name: name, ReturnType: ret, Arguments: args}, nil
}

func isNativeMethod(m *ir.Method) bool {
	if m.ReturnType.Category() == ir.CategoryNativelyDefined {
		return true
	}
	for _, a := range m.Arguments {
		if a.Type.Category() == ir.CategoryNativelyDefined {
			return true
		}
	}
	return false
}

var getResult = ir.MustParseName("get result")

func (l *linker) builtType(obj *ir.ObjectType) (*ir.ObjectType, error) {
	e := l.entries[obj.Name.Canonical()]
	if e.Builds != "" {
		d, ok := l.builder.Lookup(e.Builds)
		if !ok {
			return nil, ir.Errorf(ir.PhaseLink, obj.Name.Canonical(), "%w: builds %q", ir.ErrUnresolvedType, e.Builds)
		}
		built, ok := d.(*ir.ObjectType)
		if !ok {
			return nil, ir.Errorf(ir.PhaseLink, obj.Name.Canonical(), "%w: builds %s %q", ir.ErrMissingBuiltType, d.Category(), e.Builds)
		}
		return built, nil
	}
	for _, methods := range [][]*ir.Method{obj.Methods, obj.NativeMethods} {
		for _, m := range methods {
			if !m.Name.Equal(getResult) {
				continue
			}
			if built, ok := m.ReturnType.(*ir.ObjectType); ok {
				return built, nil
			}
		}
	}
	return nil, ir.Errorf(ir.PhaseLink, obj.Name.Canonical(), "%w", ir.ErrMissingBuiltType)
}

func (l *linker) linkStructures() error {
	for _, key := range sortedKeys(l.structs) {
		st := l.structs[key]
		e := l.entries[st.Name.Canonical()]
		members, err := l.linkMembers(st.Name.Canonical(), e.Members)
		if err != nil {
			return err
		}
		st.Members = members
	}
	return nil
}

func (l *linker) linkDeclared(wc WireCommand) (DeclaredCommand, error) {
	name, err := ir.ParseName(wc.Name)
	if err != nil {
		return DeclaredCommand{}, ir.Errorf(ir.PhaseLink, wc.Name, "%w", err)
	}
	members, err := l.linkMembers(name.Canonical(), wc.Members)
	if err != nil {
		return DeclaredCommand{}, err
	}
	return DeclaredCommand{Name: name, Category: wc.Category, Members: members}, nil
}

// linkMembers resolves a member list. A length naming a sibling must name one
// declared earlier in the same list.
func (l *linker) linkMembers(owner string, raw []Member) ([]*ir.RecordMember, error) {
	members := make([]*ir.RecordMember, 0, len(raw))
	byName := make(map[string]*ir.RecordMember, len(raw))
	for _, rm := range raw {
		m, err := l.linkMember(owner, rm, byName)
		if err != nil {
			return nil, err
		}
		key := m.Name.Canonical()
		if _, dup := byName[key]; dup {
			return nil, ir.Errorf(ir.PhaseLink, owner, "%w: duplicate member %q", ir.ErrInvalidMember, key)
		}
		byName[key] = m
		members = append(members, m)
	}
	return members, nil
}

func (l *linker) linkMember(owner string, rm Member, preceding map[string]*ir.RecordMember) (*ir.RecordMember, error) {
	name, err := ir.ParseName(rm.Name)
	if err != nil {
		return nil, ir.Errorf(ir.PhaseLink, owner, "%w", err)
	}
	typ, ok := l.builder.Lookup(rm.Type)
	if !ok {
		return nil, ir.Errorf(ir.PhaseLink, owner, "%w: member %q has type %q", ir.ErrUnresolvedType, name.Canonical(), rm.Type)
	}
	annotation, err := ir.ParseAnnotation(rm.Annotation)
	if err != nil {
		return nil, ir.Errorf(ir.PhaseLink, owner, "member %q: %w", name.Canonical(), err)
	}

	m := ir.NewMember(name, typ)
	m.Annotation = annotation
	m.Optional = rm.Optional

	length, err := parseLength(rm.Length, annotation, preceding)
	if err != nil {
		return nil, ir.Errorf(ir.PhaseLink, owner, "member %q: %w", name.Canonical(), err)
	}
	m.Length = length

	if rm.HandleType != "" {
		d, ok := l.builder.Lookup(rm.HandleType)
		if !ok {
			return nil, ir.Errorf(ir.PhaseLink, owner, "%w: member %q has handle type %q", ir.ErrUnresolvedType, name.Canonical(), rm.HandleType)
		}
		obj, ok := d.(*ir.ObjectType)
		if !ok {
			return nil, ir.Errorf(ir.PhaseLink, owner, "%w: member %q handle type %q is a %s", ir.ErrInvalidMember, name.Canonical(), rm.HandleType, d.Category())
		}
		m.SetHandleType(obj)
	}
	if annotation == ir.AnnotationHandle && m.HandleType == nil {
		obj, ok := typ.(*ir.ObjectType)
		if !ok {
			return nil, ir.Errorf(ir.PhaseLink, owner, "%w: handle member %q needs an object handle type", ir.ErrInvalidMember, name.Canonical())
		}
		m.SetHandleType(obj)
	}
	return m, nil
}

func parseLength(v any, annotation ir.Annotation, preceding map[string]*ir.RecordMember) (ir.Length, error) {
	if v == nil {
		if annotation.IsPointer() {
			return ir.Length{Kind: ir.LengthConstant, Constant: 1}, nil
		}
		return ir.Length{Kind: ir.LengthNone}, nil
	}
	if !annotation.IsPointer() {
		return ir.Length{}, fmt.Errorf("%w: length on a %s member", ir.ErrInvalidMember, annotation)
	}
	switch v := v.(type) {
	case string:
		if strings.EqualFold(v, "strlen") {
			return ir.Length{Kind: ir.LengthStrlen}, nil
		}
		sibling, ok := preceding[ir.CanonicalKey(v)]
		if !ok {
			return ir.Length{}, fmt.Errorf("%w: length member %q is not a preceding sibling", ir.ErrInvalidMember, v)
		}
		return ir.Length{Kind: ir.LengthMember, Member: sibling}, nil
	case float64:
		if v < 1 || v != math.Trunc(v) {
			return ir.Length{}, fmt.Errorf("%w: length %v is not a positive integer", ir.ErrInvalidMember, v)
		}
		return ir.Length{Kind: ir.LengthConstant, Constant: int(v)}, nil
	}
	return ir.Length{}, fmt.Errorf("%w: unsupported length %v", ir.ErrInvalidMember, v)
}
