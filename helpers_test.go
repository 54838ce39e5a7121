package dawnwire

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/broady/dawnwire/wiregen"
	"github.com/broady/dawnwire/wiregen/ir"
	"github.com/broady/dawnwire/wiregen/load"
)

const testAPI = `{
	"bool": {"category": "native"},
	"char": {"category": "native"},
	"uint8_t": {"category": "native"},
	"uint32_t": {"category": "native"},
	"uint64_t": {"category": "native"},
	"float": {"category": "native"},
	"buffer usage": {"category": "bitmask", "values": [{"name": "none", "value": 0}, {"name": "vertex", "value": 32}]},
	"device": {
		"category": "object",
		"methods": [
			{"name": "create buffer", "returns": "buffer", "args": [{"name": "descriptor", "type": "buffer descriptor", "annotation": "const*"}]},
			{"name": "create render pipeline builder", "returns": "render pipeline builder"},
			{"name": "get queue", "returns": "queue"},
			{"name": "tick"}
		]
	},
	"buffer": {
		"category": "object",
		"methods": [
			{"name": "destroy"},
			{"name": "set label", "args": [{"name": "label", "type": "char", "annotation": "const*", "length": "strlen", "optional": true}]},
			{
				"name": "set sub data",
				"args": [
					{"name": "start", "type": "uint32_t"},
					{"name": "count", "type": "uint32_t"},
					{"name": "data", "type": "uint8_t", "annotation": "const*", "length": "count"}
				]
			}
		]
	},
	"queue": {
		"category": "object",
		"methods": [
			{
				"name": "submit",
				"args": [
					{"name": "buffer count", "type": "uint32_t"},
					{"name": "buffers", "type": "buffer", "annotation": "const*", "length": "buffer count"}
				]
			},
			{"name": "write buffer", "args": [{"name": "destination", "type": "copy destination", "annotation": "const*"}]},
			{
				"name": "insert markers",
				"args": [
					{"name": "marker count", "type": "uint32_t"},
					{"name": "markers", "type": "marker", "annotation": "const*", "length": "marker count"}
				]
			}
		]
	},
	"render pipeline": {"category": "object"},
	"render pipeline builder": {
		"category": "object",
		"methods": [
			{"name": "get result", "returns": "render pipeline"},
			{"name": "set layout", "args": [{"name": "layout", "type": "pipeline layout", "optional": true}]}
		]
	},
	"pipeline layout": {"category": "object"},
	"buffer descriptor": {
		"category": "structure",
		"members": [
			{"name": "usage", "type": "buffer usage"},
			{"name": "size", "type": "uint64_t"}
		]
	},
	"marker": {"category": "structure", "members": []},
	"copy destination": {
		"category": "structure",
		"members": [
			{"name": "buffer", "type": "buffer", "optional": true},
			{"name": "offset", "type": "uint64_t"}
		]
	}
}`

const testWire = `{
	"_client side commands": ["DeviceTick"],
	"destroy object": {
		"category": "command",
		"members": [
			{"name": "object type", "type": "ObjectType"},
			{"name": "object id", "type": "ObjectId"}
		]
	},
	"buffer map async callback": {
		"category": "return command",
		"members": [
			{"name": "buffer", "type": "ObjectHandle", "handle_type": "buffer"},
			{"name": "status", "type": "uint32_t"}
		]
	}
}`

func testSchema(t *testing.T) *ir.Schema {
	t.Helper()
	api, err := load.ParseAPI([]byte(testAPI), load.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	wire, err := load.ParseWire([]byte(testWire), load.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	schema, err := wiregen.Build(context.Background(), api, wire, &wiregen.Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return schema
}

func mustCommand(t *testing.T, schema *ir.Schema, name string) *ir.CommandType {
	t.Helper()
	cmd := schema.FindCommand(name)
	if cmd == nil {
		t.Fatalf("no command %q", name)
	}
	return cmd
}

// fakeObject stands in for a live object in serializer tests.
type fakeObject struct {
	Type string
	ID   ObjectID
}

// fakeObjects provides and resolves fakeObject values.
type fakeObjects struct{}

func (fakeObjects) ObjectID(t *ir.ObjectType, v any) (ObjectID, error) {
	o, ok := v.(fakeObject)
	if !ok || o.Type != t.Name.Canonical() {
		return 0, fmt.Errorf("not a %s: %v", t.Name.Canonical(), v)
	}
	return o.ID, nil
}

func (fakeObjects) ResolveObject(t *ir.ObjectType, id ObjectID) (any, error) {
	return fakeObject{Type: t.Name.Canonical(), ID: id}, nil
}

// pipe connects a Client and a Server through in-memory buffers.
type pipe struct {
	schema   *ir.Schema
	client   *Client
	server   *Server
	commands bytes.Buffer
	returns  bytes.Buffer
	device   *Object
}

func newPipe(t *testing.T, cfg ServerConfig) *pipe {
	t.Helper()
	p := &pipe{schema: testSchema(t)}
	cfg.Returns = &p.returns
	p.server = NewServer(p.schema, cfg)
	p.client = NewClient(p.schema, ClientConfig{Commands: &p.commands})

	device, err := p.client.Inject("device")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.server.Inject("device", device.Handle, "the device"); err != nil {
		t.Fatal(err)
	}
	p.device = device
	return p
}

// flush delivers pending commands to the server and its return commands
// back to the client.
func (p *pipe) flush(t *testing.T) error {
	t.Helper()
	data := bytes.Clone(p.commands.Bytes())
	p.commands.Reset()
	if err := p.server.HandleCommands(context.Background(), data); err != nil {
		return err
	}
	returns := bytes.Clone(p.returns.Bytes())
	p.returns.Reset()
	return p.client.HandleReturnCommands(returns)
}

func (p *pipe) mustFlush(t *testing.T) {
	t.Helper()
	if err := p.flush(t); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func (p *pipe) mustCall(t *testing.T, self *Object, method string, args ...any) *Object {
	t.Helper()
	obj, err := p.client.Call(self, method, args...)
	if err != nil {
		t.Fatalf("Call(%s): %v", method, err)
	}
	return obj
}

// recorder is a HandlerFunc that remembers every call.
type recorder struct {
	calls   []*Call
	results map[string]any
	errs    map[string]error
}

func (r *recorder) handle(_ context.Context, call *Call) (any, error) {
	r.calls = append(r.calls, call)
	if err := r.errs[call.Name()]; err != nil {
		return nil, err
	}
	return r.results[call.Name()], nil
}

func (r *recorder) names() []string {
	var out []string
	for _, c := range r.calls {
		out = append(out, c.Name())
	}
	return out
}
