package ir

import (
	"fmt"
	"sort"
)

// TableBuilder is the mutable type table used during linking. Once every
// reference is resolved call Freeze; later phases only see the frozen Table.
type TableBuilder struct {
	types map[string]TypeDescriptor
}

// NewTableBuilder returns an empty builder.
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{types: make(map[string]TypeDescriptor)}
}

// Add registers t under its canonical name.
func (b *TableBuilder) Add(t TypeDescriptor) error {
	key := t.TypeName().Canonical()
	if prev, ok := b.types[key]; ok {
		return Errorf(PhaseLink, key, "%w: already declared as %s", ErrNameCollision, prev.Category())
	}
	b.types[key] = t
	return nil
}

// Lookup resolves a declared type name.
func (b *TableBuilder) Lookup(name string) (TypeDescriptor, bool) {
	t, ok := b.types[CanonicalKey(name)]
	return t, ok
}

// Len returns the number of registered types.
func (b *TableBuilder) Len() int { return len(b.types) }

// Freeze returns the read-only table. The builder must not be used afterwards.
func (b *TableBuilder) Freeze() *Table {
	t := newTable(b.types)
	b.types = nil
	return t
}

// Table is the frozen type table. It owns every TypeDescriptor for the
// lifetime of a generation pass and exposes lookups only.
type Table struct {
	types      map[string]TypeDescriptor
	byCategory map[Category][]TypeDescriptor
}

func newTable(types map[string]TypeDescriptor) *Table {
	t := &Table{
		types:      types,
		byCategory: make(map[Category][]TypeDescriptor),
	}
	for _, key := range sortedKeys(types) {
		d := types[key]
		t.byCategory[d.Category()] = append(t.byCategory[d.Category()], d)
	}
	return t
}

// Lookup resolves a declared type name.
func (t *Table) Lookup(name string) (TypeDescriptor, bool) {
	d, ok := t.types[CanonicalKey(name)]
	return d, ok
}

// Len returns the number of types.
func (t *Table) Len() int { return len(t.types) }

// Names returns every canonical name in sorted order.
func (t *Table) Names() []string { return sortedKeys(t.types) }

// ByCategory returns the types of category c sorted by canonical name.
func (t *Table) ByCategory(c Category) []TypeDescriptor {
	return append([]TypeDescriptor(nil), t.byCategory[c]...)
}

// Objects returns every object type sorted by canonical name.
func (t *Table) Objects() []*ObjectType {
	var out []*ObjectType
	for _, d := range t.byCategory[CategoryObject] {
		out = append(out, d.(*ObjectType))
	}
	return out
}

// Structures returns every structure type sorted by canonical name.
func (t *Table) Structures() []*StructureType {
	var out []*StructureType
	for _, d := range t.byCategory[CategoryStructure] {
		out = append(out, d.(*StructureType))
	}
	return out
}

// Extend returns a new Table holding t's types plus extra. A name already
// present in t or repeated in extra is an ErrNameCollision.
func (t *Table) Extend(extra ...TypeDescriptor) (*Table, error) {
	types := make(map[string]TypeDescriptor, len(t.types)+len(extra))
	for k, v := range t.types {
		types[k] = v
	}
	for _, d := range extra {
		key := d.TypeName().Canonical()
		if prev, ok := types[key]; ok {
			return nil, Errorf(PhaseAssemble, key, "%w: %s collides with existing %s", ErrNameCollision, d.Category(), prev.Category())
		}
		types[key] = d
	}
	return newTable(types), nil
}

// MustLookup is like Lookup but reports an ErrUnresolvedType SchemaError.
func (t *Table) MustLookup(phase Phase, entity, name string) (TypeDescriptor, error) {
	d, ok := t.Lookup(name)
	if !ok {
		return nil, Errorf(phase, entity, "%w: %q", ErrUnresolvedType, name)
	}
	return d, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TopoSortStructures orders structures so that a structure appears after
// every structure it holds by value or pointer. Ties keep canonical order.
// A cycle is an ErrCyclicStructure naming the cycle path.
func TopoSortStructures(structs []*StructureType) ([]*StructureType, error) {
	sorted := append([]*StructureType(nil), structs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name.Canonical() < sorted[j].Name.Canonical()
	})

	depth := make(map[string]int)
	inStack := make(map[string]bool)

	var visit func(s *StructureType, path []string) (int, error)
	visit = func(s *StructureType, path []string) (int, error) {
		key := s.Name.Canonical()
		if inStack[key] {
			return 0, Errorf(PhaseLink, key, "%w: %s", ErrCyclicStructure, joinPath(append(path, key)))
		}
		if d, ok := depth[key]; ok {
			return d, nil
		}
		inStack[key] = true
		deepest := 0
		for _, m := range s.Members {
			child, ok := m.Type.(*StructureType)
			if !ok {
				continue
			}
			d, err := visit(child, append(path, key))
			if err != nil {
				return 0, err
			}
			if d+1 > deepest {
				deepest = d + 1
			}
		}
		inStack[key] = false
		depth[key] = deepest
		return deepest, nil
	}

	for _, s := range sorted {
		if _, err := visit(s, nil); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return depth[sorted[i].Name.Canonical()] < depth[sorted[j].Name.Canonical()]
	})
	return sorted, nil
}

// joinPath joins path elements with " -> ".
func joinPath(path []string) string {
	if len(path) == 0 {
		return ""
	}
	result := path[0]
	for i := 1; i < len(path); i++ {
		result += " -> " + path[i]
	}
	return result
}

// String implements fmt.Stringer for debugging.
func (t *Table) String() string {
	return fmt.Sprintf("Table(%d types)", len(t.types))
}
