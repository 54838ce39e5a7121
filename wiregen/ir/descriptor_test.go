package ir

import (
	"errors"
	"testing"
)

func TestCategory_RoundTrip(t *testing.T) {
	for _, c := range Categories {
		got, err := ParseCategory(c.String())
		if err != nil {
			t.Errorf("ParseCategory(%q) error: %v", c.String(), err)
			continue
		}
		if got != c {
			t.Errorf("ParseCategory(%q) = %v, want %v", c.String(), got, c)
		}
	}
	if _, err := ParseCategory("callback"); !errors.Is(err, ErrInvalidDescription) {
		t.Errorf("ParseCategory(callback) error = %v, want ErrInvalidDescription", err)
	}
	if Category(99).String() != "unknown" {
		t.Error("out of range category should render as unknown")
	}
}

func TestDescriptor_Categories(t *testing.T) {
	name := MustParseName("x")
	tests := []struct {
		d    TypeDescriptor
		want Category
	}{
		{&PrimitiveType{Name: name}, CategoryPrimitive},
		{&NativeType{Name: name}, CategoryNative},
		{&NativelyDefinedType{Name: name}, CategoryNativelyDefined},
		{&EnumType{Name: name}, CategoryEnum},
		{&BitmaskType{Name: name}, CategoryBitmask},
		{&ObjectType{Name: name}, CategoryObject},
		{&StructureType{Name: name}, CategoryStructure},
		{NewCommand(CategoryCommand, name, nil), CategoryCommand},
		{NewCommand(CategoryReturnCommand, name, nil), CategoryReturnCommand},
	}
	if len(tests) != len(Categories) {
		t.Fatalf("test table covers %d categories, want %d", len(tests), len(Categories))
	}
	for _, tt := range tests {
		if got := tt.d.Category(); got != tt.want {
			t.Errorf("%T.Category() = %v, want %v", tt.d, got, tt.want)
		}
		if !tt.d.TypeName().Equal(name) {
			t.Errorf("%T.TypeName() = %v", tt.d, tt.d.TypeName())
		}
	}
}

func TestMethod_ReturnKinds(t *testing.T) {
	void := &NativeType{Name: MustParseName("void")}
	buffer := &ObjectType{Name: MustParseName("buffer")}
	float := &PrimitiveType{Name: MustParseName("float")}

	if m := (&Method{ReturnType: void}); !m.ReturnsVoid() || m.ReturnsObject() {
		t.Error("void method misclassified")
	}
	if m := (&Method{ReturnType: buffer}); m.ReturnsVoid() || !m.ReturnsObject() {
		t.Error("object method misclassified")
	}
	if m := (&Method{ReturnType: float}); m.ReturnsVoid() || m.ReturnsObject() {
		t.Error("float method misclassified")
	}
}

func TestAnnotation_Parse(t *testing.T) {
	tests := map[string]Annotation{
		"":             AnnotationValue,
		"value":        AnnotationValue,
		"const*":       AnnotationConstPointer,
		"*":            AnnotationMutablePointer,
		"const*const*": AnnotationArray,
		"handle":       AnnotationHandle,
	}
	for in, want := range tests {
		got, err := ParseAnnotation(in)
		if err != nil {
			t.Errorf("ParseAnnotation(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseAnnotation(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseAnnotation("&"); !errors.Is(err, ErrInvalidMember) {
		t.Errorf("ParseAnnotation(&) error = %v, want ErrInvalidMember", err)
	}
}

func TestRecordMember_IsObjectReference(t *testing.T) {
	buffer := &ObjectType{Name: MustParseName("buffer")}
	u32 := &PrimitiveType{Name: MustParseName("uint32_t")}

	value := NewMember(MustParseName("buffer"), buffer)
	if !value.IsObjectReference() {
		t.Error("value object member should be an object reference")
	}

	handle := NewMember(MustParseName("buffer"), buffer)
	handle.Annotation = AnnotationHandle
	handle.SetHandleType(buffer)
	if handle.IsObjectReference() {
		t.Error("handle member must not be an object reference")
	}

	if NewMember(MustParseName("size"), u32).IsObjectReference() {
		t.Error("primitive member is not an object reference")
	}
}

func TestCommandType_InputsOutputs(t *testing.T) {
	self := NewMember(MustParseName("self"), &ObjectType{Name: MustParseName("device")})
	handle, _ := NativeName("ObjectHandle")
	result := NewMember(MustParseName("result"), &NativeType{Name: handle})
	result.IsReturnValue = true

	cmd := NewCommand(CategoryCommand, MustParseName("device create buffer"), []*RecordMember{self, result})
	if in := cmd.Inputs(); len(in) != 1 || in[0] != self {
		t.Errorf("Inputs() = %v", in)
	}
	if out := cmd.Outputs(); len(out) != 1 || out[0] != result {
		t.Errorf("Outputs() = %v", out)
	}
	if cmd.Member("Result") != result {
		t.Error("Member lookup should be case-insensitive")
	}
	if cmd.Member("missing") != nil {
		t.Error("Member(missing) should be nil")
	}
}
