package dawnwire

import "testing"

func TestKnownObjects_Allocate(t *testing.T) {
	k := NewKnownObjects[string]()

	tests := []struct {
		name     string
		handle   ObjectHandle
		wantCode ErrorCode
	}{
		{name: "null id", handle: ObjectHandle{}, wantCode: CodeInvalidArgument},
		{name: "fresh id", handle: ObjectHandle{ID: 5}},
		{name: "live id", handle: ObjectHandle{ID: 5, Generation: 3}, wantCode: CodeInvalidArgument},
		{name: "other fresh id", handle: ObjectHandle{ID: 2, Generation: 7}},
		{name: "id far past the end", handle: ObjectHandle{ID: 0xFFFFFFF0}, wantCode: CodeFatal},
		{name: "id just inside the gap", handle: ObjectHandle{ID: 6 + maxObjectIDGap - 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := k.Allocate(tt.handle)
			if got := CodeOf(err); got != tt.wantCode {
				t.Errorf("Allocate(%v) code = %q, want %q (err %v)", tt.handle, got, tt.wantCode, err)
			}
		})
	}
	if k.Len() != 3 {
		t.Errorf("Len() = %d, want 3", k.Len())
	}
}

func TestKnownObjects_GenerationMustIncrease(t *testing.T) {
	k := NewKnownObjects[string]()
	if err := k.Inject(ObjectHandle{ID: 1, Generation: 2}, "first"); err != nil {
		t.Fatal(err)
	}
	if v, ok := k.Free(1); !ok || v != "first" {
		t.Fatalf("Free = %q, %v", v, ok)
	}
	if _, ok := k.Free(1); ok {
		t.Error("double Free must fail")
	}

	for _, gen := range []ObjectGeneration{1, 2} {
		if err := k.Allocate(ObjectHandle{ID: 1, Generation: gen}); CodeOf(err) != CodeStaleHandle {
			t.Errorf("Allocate(generation %d) = %v, want stale_handle", gen, err)
		}
	}
	if err := k.Allocate(ObjectHandle{ID: 1, Generation: 3}); err != nil {
		t.Fatalf("newer generation rejected: %v", err)
	}
	if !k.Set(1, "second") {
		t.Fatal("Set on allocated id failed")
	}
	if k.Set(9, "x") {
		t.Error("Set on unallocated id must fail")
	}
	if v, ok := k.Get(1); !ok || v != "second" {
		t.Errorf("Get(1) = %q, %v", v, ok)
	}
}

func TestKnownObjects_GetHandle(t *testing.T) {
	k := NewKnownObjects[string]()
	if err := k.Inject(ObjectHandle{ID: 3, Generation: 1}, "tex"); err != nil {
		t.Fatal(err)
	}
	if v, err := k.GetHandle(ObjectHandle{ID: 3, Generation: 1}); err != nil || v != "tex" {
		t.Errorf("GetHandle = %q, %v", v, err)
	}
	if _, err := k.GetHandle(ObjectHandle{ID: 3}); CodeOf(err) != CodeStaleHandle {
		t.Errorf("old generation: %v, want stale_handle", err)
	}
	if _, err := k.GetHandle(ObjectHandle{ID: 4}); CodeOf(err) != CodeInvalidArgument {
		t.Errorf("unknown id: %v, want invalid_argument", err)
	}
	if _, ok := k.Get(0); ok {
		t.Error("the null id is never known")
	}
	id, ok := k.Find(func(s string) bool { return s == "tex" })
	if !ok || id != 3 {
		t.Errorf("Find = %d, %v", id, ok)
	}
}
