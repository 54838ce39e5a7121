package ir

import (
	"errors"
	"strings"
	"testing"
)

func TestTableBuilder_Collision(t *testing.T) {
	b := NewTableBuilder()
	if err := b.Add(&ObjectType{Name: MustParseName("buffer")}); err != nil {
		t.Fatal(err)
	}
	err := b.Add(&StructureType{Name: MustParseName("Buffer")})
	if !errors.Is(err, ErrNameCollision) {
		t.Fatalf("Add duplicate error = %v, want ErrNameCollision", err)
	}
	var se *SchemaError
	if !errors.As(err, &se) || se.Phase != PhaseLink || se.Entity != "buffer" {
		t.Errorf("unexpected SchemaError: %+v", se)
	}
}

func TestTable_Lookup(t *testing.T) {
	b := NewTableBuilder()
	buffer := &ObjectType{Name: MustParseName("buffer")}
	desc := &StructureType{Name: MustParseName("buffer descriptor")}
	u32 := &PrimitiveType{Name: MustParseName("uint32_t")}
	for _, d := range []TypeDescriptor{desc, u32, buffer} {
		if err := b.Add(d); err != nil {
			t.Fatal(err)
		}
	}
	if b.Len() != 3 {
		t.Errorf("builder Len() = %d, want 3", b.Len())
	}
	table := b.Freeze()

	if d, ok := table.Lookup("Buffer  Descriptor"); !ok || d != desc {
		t.Errorf("Lookup normalizes case and spacing: got %v, %v", d, ok)
	}
	if _, ok := table.Lookup("texture"); ok {
		t.Error("Lookup(texture) should fail")
	}
	if _, err := table.MustLookup(PhaseSynthesize, "device", "texture"); !errors.Is(err, ErrUnresolvedType) {
		t.Errorf("MustLookup error = %v, want ErrUnresolvedType", err)
	}

	names := table.Names()
	want := []string{"buffer", "buffer descriptor", "uint32_t"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", names, want)
	}
	if objs := table.Objects(); len(objs) != 1 || objs[0] != buffer {
		t.Errorf("Objects() = %v", objs)
	}
	if structs := table.Structures(); len(structs) != 1 || structs[0] != desc {
		t.Errorf("Structures() = %v", structs)
	}
}

func TestTable_Extend(t *testing.T) {
	b := NewTableBuilder()
	device := &ObjectType{Name: MustParseName("device")}
	_ = b.Add(device)
	base := b.Freeze()

	cmd := NewCommand(CategoryCommand, MustParseName("device destroy"), nil)
	extended, err := base.Extend(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if extended.Len() != 2 {
		t.Errorf("extended Len() = %d, want 2", extended.Len())
	}
	if base.Len() != 1 {
		t.Errorf("Extend must not mutate the receiver, Len() = %d", base.Len())
	}
	if got := extended.ByCategory(CategoryCommand); len(got) != 1 || got[0] != cmd {
		t.Errorf("ByCategory(command) = %v", got)
	}

	clash := NewCommand(CategoryCommand, MustParseName("device"), nil)
	if _, err := base.Extend(clash); !errors.Is(err, ErrNameCollision) {
		t.Errorf("Extend with colliding name error = %v, want ErrNameCollision", err)
	}
	a := NewCommand(CategoryCommand, MustParseName("x"), nil)
	a2 := NewCommand(CategoryReturnCommand, MustParseName("x"), nil)
	if _, err := base.Extend(a, a2); !errors.Is(err, ErrNameCollision) {
		t.Errorf("Extend with repeated name error = %v, want ErrNameCollision", err)
	}
}

func TestTopoSortStructures(t *testing.T) {
	u32 := &PrimitiveType{Name: MustParseName("uint32_t")}
	extent := &StructureType{Name: MustParseName("extent")}
	extent.Members = []*RecordMember{NewMember(MustParseName("width"), u32)}
	texture := &StructureType{Name: MustParseName("a texture descriptor")}
	texture.Members = []*RecordMember{NewMember(MustParseName("size"), extent)}
	copyInfo := &StructureType{Name: MustParseName("copy info")}
	copyInfo.Members = []*RecordMember{NewMember(MustParseName("desc"), texture)}
	color := &StructureType{Name: MustParseName("color")}

	sorted, err := TopoSortStructures([]*StructureType{copyInfo, texture, color, extent})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, s := range sorted {
		names = append(names, s.Name.Canonical())
	}
	want := "color,extent,a texture descriptor,copy info"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("TopoSortStructures = %s, want %s", got, want)
	}
}

func TestTopoSortStructures_Cycle(t *testing.T) {
	a := &StructureType{Name: MustParseName("a")}
	b := &StructureType{Name: MustParseName("b")}
	a.Members = []*RecordMember{NewMember(MustParseName("next"), b)}
	b.Members = []*RecordMember{NewMember(MustParseName("prev"), a)}

	_, err := TopoSortStructures([]*StructureType{a, b})
	if !errors.Is(err, ErrCyclicStructure) {
		t.Fatalf("error = %v, want ErrCyclicStructure", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> a") {
		t.Errorf("error should name the cycle path, got %v", err)
	}
}
