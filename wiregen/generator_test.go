package wiregen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"

	"github.com/broady/dawnwire/wiregen/ir"
	"github.com/broady/dawnwire/wiregen/load"
)

// fixture is a txtar archive with api.json, optional wire.json, and the
// expected "commands" and "serialization_info" listings.
type fixture struct {
	api, wire            []byte
	commands, serialInfo []string
}

func readFixture(t *testing.T, path string) fixture {
	t.Helper()
	ar, err := txtar.ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var f fixture
	for _, file := range ar.Files {
		switch file.Name {
		case "api.json":
			f.api = file.Data
		case "wire.json":
			f.wire = file.Data
		case "commands":
			f.commands = lines(file.Data)
		case "serialization_info":
			f.serialInfo = lines(file.Data)
		default:
			t.Fatalf("%s: unexpected file %q", path, file.Name)
		}
	}
	return f
}

func lines(data []byte) []string {
	var out []string
	for _, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func buildFixture(t *testing.T, f fixture, cfg *Config) *ir.Schema {
	t.Helper()
	api, err := load.ParseAPI(f.api, load.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	var wire *load.WireDescription
	if f.wire != nil {
		wire, err = load.ParseWire(f.wire, load.FormatJSON)
		if err != nil {
			t.Fatal(err)
		}
	}
	if cfg == nil {
		cfg = &Config{}
	}
	schema, err := Build(context.Background(), api, wire, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return schema
}

func TestBuild_Fixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/*.txtar")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no fixtures")
	}
	for _, path := range paths {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".txtar"), func(t *testing.T) {
			f := readFixture(t, path)
			schema := buildFixture(t, f, nil)

			var commands []string
			for _, c := range []ir.Category{ir.CategoryCommand, ir.CategoryReturnCommand} {
				for _, cmd := range schema.ByCategory(c) {
					commands = append(commands, c.String()+" "+cmd.Name.Canonical())
				}
			}
			if diff := cmp.Diff(f.commands, commands); diff != "" {
				t.Errorf("commands mismatch (-want +got):\n%s", diff)
			}

			var info []string
			for name, si := range schema.SerializationInfo {
				info = append(info, fmt.Sprintf("%s %v", name, si.HasDawnObject))
			}
			sort.Strings(info)
			want := append([]string(nil), f.serialInfo...)
			sort.Strings(want)
			if diff := cmp.Diff(want, info); diff != "" {
				t.Errorf("serialization_info mismatch (-want +got):\n%s", diff)
			}

			if errs := schema.Validate(); len(errs) > 0 {
				t.Errorf("Validate() = %v", errs)
			}
		})
	}
}

func TestBuild_MethodCommandShape(t *testing.T) {
	schema := buildFixture(t, readFixture(t, "testdata/render_pipeline.txtar"), nil)

	cmd := schema.FindCommand("device create buffer")
	if cmd == nil {
		t.Fatal("device create buffer not generated")
	}
	if cmd.DerivedObject == nil || cmd.DerivedObject.Name.Canonical() != "device" {
		t.Errorf("DerivedObject = %v", cmd.DerivedObject)
	}
	if cmd.DerivedMethod == nil || cmd.DerivedMethod.Name.Canonical() != "create buffer" {
		t.Errorf("DerivedMethod = %v", cmd.DerivedMethod)
	}

	var got []string
	for _, m := range cmd.Members {
		got = append(got, fmt.Sprintf("%s:%s:%s:%v", m.Name.Canonical(), m.Type.TypeName().Canonical(), m.Annotation, m.IsReturnValue))
	}
	want := []string{
		"self:device:value:false",
		"descriptor:buffer descriptor:const*:false",
		"result:objecthandle:value:true",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
	result := cmd.Outputs()
	if len(result) != 1 || result[0].HandleType == nil || result[0].HandleType.Name.Canonical() != "buffer" {
		t.Errorf("result handle type = %+v", result)
	}

	// Arguments keep declaration order after self.
	setSub := schema.FindCommand("buffer set sub data")
	var names []string
	for _, m := range setSub.Inputs() {
		names = append(names, m.Name.Canonical())
	}
	if diff := cmp.Diff([]string{"self", "start", "count", "data"}, names); diff != "" {
		t.Errorf("argument order (-want +got):\n%s", diff)
	}
	if len(setSub.Outputs()) != 0 {
		t.Error("void method has no outputs")
	}
}

func TestBuild_BuilderCallback(t *testing.T) {
	schema := buildFixture(t, readFixture(t, "testdata/render_pipeline.txtar"), nil)

	d, _ := schema.Types.Lookup("render pipeline builder")
	builder := d.(*ir.ObjectType)
	var callbacks []*ir.CommandType
	for _, c := range schema.ReturnCommands {
		if c.IsBuilderCallback() {
			callbacks = append(callbacks, c)
		}
	}
	if len(callbacks) != 1 {
		t.Fatalf("got %d builder callbacks, want 1", len(callbacks))
	}
	cb := callbacks[0]
	if cb != schema.BuilderCallback(builder) {
		t.Error("BuilderCallback lookup mismatch")
	}
	if cb.Name.Canonical() != "render pipeline builder error callback" {
		t.Errorf("name = %q", cb.Name.Canonical())
	}
	if cb.DerivedObject != builder || cb.DerivedMethod != nil {
		t.Errorf("callback derived object/method = %v/%v", cb.DerivedObject, cb.DerivedMethod)
	}
	if len(cb.Members) != 3 {
		t.Fatalf("callback has %d members, want 3", len(cb.Members))
	}

	built, status, message := cb.Members[0], cb.Members[1], cb.Members[2]
	if built.Name.Canonical() != "built object" || built.IsReturnValue || built.HandleType == nil || built.HandleType.Name.Canonical() != "render pipeline" {
		t.Errorf("built object member = %+v", built)
	}
	if status.Name.Canonical() != "status" || status.Type.TypeName().Canonical() != "uint32_t" || status.Annotation != ir.AnnotationValue {
		t.Errorf("status member = %+v", status)
	}
	if message.Name.Canonical() != "message" || message.Type.TypeName().Canonical() != "char" || message.Length.Kind != ir.LengthStrlen {
		t.Errorf("message member = %+v", message)
	}
}

func TestBuild_UnsupportedMethods(t *testing.T) {
	f := readFixture(t, "testdata/render_pipeline.txtar")

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	silent := buildFixture(t, f, &Config{Logger: logger})
	if len(silent.Warnings) != 0 {
		t.Errorf("warnings without opt-in: %v", silent.Warnings)
	}
	if logs.Len() != 0 {
		t.Errorf("unsupported methods must be silent without opt-in, logged %s", logs.String())
	}
	if silent.FindCommand("buffer get mapped range size") != nil {
		t.Error("a method returning float must not become a command")
	}
	if silent.FindCommand("buffer destroy") == nil {
		t.Error("a method returning void must become a command")
	}

	warned := buildFixture(t, f, &Config{WarnUnsupported: true, Logger: logger})
	var codes []string
	for _, w := range warned.Warnings {
		codes = append(codes, w.Code+" "+w.TypeName)
	}
	sort.Strings(codes)
	want := []string{
		"client_side_method device tick",
		"unsupported_method buffer get mapped range size",
	}
	if diff := cmp.Diff(want, codes); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), `"command":"buffer get mapped range size"`) {
		t.Errorf("expected a warn log for the skipped method, got %s", logs.String())
	}
	if len(warned.Commands) != len(silent.Commands) {
		t.Error("warnings must not change the command set")
	}
}

func TestBuild_ClientSideFromConfig(t *testing.T) {
	f := readFixture(t, "testdata/render_pipeline.txtar")
	schema := buildFixture(t, f, &Config{ClientSideCommands: []string{"BufferDestroy"}})
	if schema.FindCommand("buffer destroy") != nil {
		t.Error("client side command should be skipped")
	}
	if schema.FindCommand("device tick") != nil {
		t.Error("wire description client side list still applies")
	}
}

func TestBuild_SortIsPermutationInvariant(t *testing.T) {
	f := readFixture(t, "testdata/render_pipeline.txtar")
	want, err := Marshal(buildFixture(t, f, nil), "  ")
	if err != nil {
		t.Fatal(err)
	}

	// Reorder method declarations and wire entries; output must not change.
	api, err := load.ParseAPI(f.api, load.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	wire, err := load.ParseWire(f.wire, load.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 5; i++ {
		for _, e := range api.Entries {
			rng.Shuffle(len(e.Methods), func(a, b int) { e.Methods[a], e.Methods[b] = e.Methods[b], e.Methods[a] })
		}
		rng.Shuffle(len(wire.Commands), func(a, b int) {
			wire.Commands[a], wire.Commands[b] = wire.Commands[b], wire.Commands[a]
		})
		schema, err := Build(context.Background(), api, wire, &Config{})
		if err != nil {
			t.Fatal(err)
		}
		for _, bucket := range [][]*ir.CommandType{schema.Commands, schema.ReturnCommands} {
			for j := 1; j < len(bucket); j++ {
				if bucket[j-1].Name.Canonical() >= bucket[j].Name.Canonical() {
					t.Fatalf("bucket not strictly ordered at %s", bucket[j].Name.Canonical())
				}
			}
		}
		// Method order is part of the object description, so compare the
		// command buckets and serialization info only.
		got := commandNames(schema)
		if diff := cmp.Diff(commandNames(buildFixture(t, f, nil)), got); diff != "" {
			t.Fatalf("permutation %d changed the command order (-want +got):\n%s", i, diff)
		}
	}

	again, err := Marshal(buildFixture(t, f, nil), "  ")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(want, again) {
		t.Error("regenerating from identical input must be byte-for-byte stable")
	}
}

func commandNames(s *ir.Schema) []string {
	var out []string
	for _, cmd := range s.Commands {
		id, _ := s.CommandID(cmd)
		out = append(out, fmt.Sprintf("%d %s", id, cmd.Name.Canonical()))
	}
	for _, cmd := range s.ReturnCommands {
		id, _ := s.CommandID(cmd)
		out = append(out, fmt.Sprintf("return %d %s", id, cmd.Name.Canonical()))
	}
	return out
}

func TestBuild_FatalErrors(t *testing.T) {
	base := `{
		"uint32_t": {"category": "native"},
		"char": {"category": "native"},
		"device": {"category": "object", "methods": [{"name": "destroy"}]}
	}`
	tests := []struct {
		name  string
		api   string
		wire  string
		want  error
		phase ir.Phase
	}{
		{
			name:  "declared command collides with a synthesized one",
			api:   base,
			wire:  `{"device destroy": {"category": "command", "members": []}}`,
			want:  ir.ErrNameCollision,
			phase: ir.PhaseSynthesize,
		},
		{
			name:  "declared command collides with a type",
			api:   base,
			wire:  `{"device": {"category": "return command", "members": []}}`,
			want:  ir.ErrNameCollision,
			phase: ir.PhaseAssemble,
		},
		{
			name:  "declared member type is unknown",
			api:   base,
			wire:  `{"ping": {"category": "command", "members": [{"name": "x", "type": "nope"}]}}`,
			want:  ir.ErrUnresolvedType,
			phase: ir.PhaseLink,
		},
		{
			name: "builder callback needs uint32_t",
			api: `{
				"char": {"category": "native"},
				"thing": {"category": "object"},
				"thing builder": {"category": "object", "builds": "thing"}
			}`,
			want:  ir.ErrUnresolvedType,
			phase: ir.PhaseSynthesize,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, err := load.ParseAPI([]byte(tt.api), load.FormatJSON)
			if err != nil {
				t.Fatal(err)
			}
			var wire *load.WireDescription
			if tt.wire != "" {
				if wire, err = load.ParseWire([]byte(tt.wire), load.FormatJSON); err != nil {
					t.Fatal(err)
				}
			}
			schema, err := Build(context.Background(), api, wire, &Config{})
			if schema != nil {
				t.Error("no schema is produced on a fatal error")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Build error = %v, want %v", err, tt.want)
			}
			var se *ir.SchemaError
			if !errors.As(err, &se) || se.Phase != tt.phase {
				t.Errorf("error phase = %+v, want %s", se, tt.phase)
			}
		})
	}
}

func TestBuild_CommandIDs(t *testing.T) {
	schema := buildFixture(t, readFixture(t, "testdata/render_pipeline.txtar"), nil)
	for i, cmd := range schema.Commands {
		id, ok := schema.CommandID(cmd)
		if !ok || id != uint32(i) {
			t.Errorf("CommandID(%s) = %d, %v; want %d", cmd.Name, id, ok, i)
		}
		if schema.CommandByID(ir.CategoryCommand, id) != cmd {
			t.Errorf("CommandByID(%d) mismatch", id)
		}
	}
	if schema.CommandByID(ir.CategoryCommand, uint32(len(schema.Commands))) != nil {
		t.Error("out of range id should be nil")
	}
	destroy := schema.FindCommand("destroy object")
	if want := ir.CommandHeaderSize + 2*ir.ObjectIDSize; destroy.FixedSize != want {
		t.Errorf("destroy object FixedSize = %d, want %d", destroy.FixedSize, want)
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(&Config{})
	if cfg.SchemaFile != DefaultSchemaFile || cfg.Indent != "  " || cfg.Logger == nil {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	explicit := &Config{SchemaFile: "out.json", Indent: "\t"}
	cfg = applyConfigDefaults(explicit)
	if cfg.SchemaFile != "out.json" || cfg.Indent != "\t" {
		t.Errorf("explicit values not preserved: %+v", cfg)
	}
	if explicit.Logger != nil {
		t.Error("applyConfigDefaults must not mutate its input")
	}
}

func TestGenerator_ToDir(t *testing.T) {
	f := readFixture(t, "testdata/render_pipeline.txtar")
	dir := t.TempDir()
	apiPath := filepath.Join(dir, "api.json")
	wirePath := filepath.Join(dir, "wire.json")
	if err := os.WriteFile(apiPath, f.api, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(wirePath, f.wire, 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "gen")
	result, err := FromFiles(apiPath, wirePath).
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).
		ToDir(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Files) != 1 || result.Files[0].Path != DefaultSchemaFile {
		t.Errorf("Files = %+v", result.Files)
	}
	written, err := os.ReadFile(filepath.Join(out, DefaultSchemaFile))
	if err != nil {
		t.Fatal(err)
	}

	_, mem, err := FromFiles(apiPath, wirePath).Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(written, mem.Get(DefaultSchemaFile)) {
		t.Error("ToDir and Generate must render identical output")
	}
	for _, key := range []string{`"command": [`, `"return command": [`, `"serialization_info": {`, `"has_dawn_object": true`} {
		if !bytes.Contains(written, []byte(key)) {
			t.Errorf("output missing %s", key)
		}
	}
}

func TestGenerator_MissingAPIPath(t *testing.T) {
	if _, err := FromFiles("", "").Build(context.Background()); err == nil {
		t.Error("Build without an API path should fail")
	}
}
