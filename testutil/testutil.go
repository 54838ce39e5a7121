// Package testutil provides helpers for tests that build wire schemas, drive a
// dawnwire client against a server, or inspect devtools responses.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/broady/dawnwire"
	"github.com/broady/dawnwire/wiregen"
	"github.com/broady/dawnwire/wiregen/ir"
	"github.com/broady/dawnwire/wiregen/load"
)

// Schema builds a schema from JSON API and wire descriptions. wire may be empty.
func Schema(t testing.TB, api, wire string) *ir.Schema {
	t.Helper()
	apiDesc, err := load.ParseAPI([]byte(api), load.FormatJSON)
	if err != nil {
		t.Fatalf("failed to parse api description: %v", err)
	}
	var wireDesc *load.WireDescription
	if wire != "" {
		wireDesc, err = load.ParseWire([]byte(wire), load.FormatJSON)
		if err != nil {
			t.Fatalf("failed to parse wire description: %v", err)
		}
	}
	s, err := wiregen.Build(context.Background(), apiDesc, wireDesc, &wiregen.Config{})
	if err != nil {
		t.Fatalf("failed to build schema: %v", err)
	}
	return s
}

// Pipe connects a Client to a Server through in-memory buffers.
type Pipe struct {
	Schema *ir.Schema
	Client *dawnwire.Client
	Server *dawnwire.Server

	commands bytes.Buffer
	returns  bytes.Buffer
}

// NewPipe creates a client and a server for schema. cfg.Returns is replaced
// by the pipe's return buffer.
func NewPipe(t testing.TB, schema *ir.Schema, cfg dawnwire.ServerConfig) *Pipe {
	t.Helper()
	p := &Pipe{Schema: schema}
	cfg.Returns = &p.returns
	p.Server = dawnwire.NewServer(schema, cfg)
	p.Client = dawnwire.NewClient(schema, dawnwire.ClientConfig{Commands: &p.commands})
	return p
}

// Inject registers a root object on both ends.
func (p *Pipe) Inject(t testing.TB, typeName string, v any) *dawnwire.Object {
	t.Helper()
	obj, err := p.Client.Inject(typeName)
	if err != nil {
		t.Fatalf("failed to inject %s: %v", typeName, err)
	}
	if err := p.Server.Inject(typeName, obj.Handle, v); err != nil {
		t.Fatalf("failed to inject %s on the server: %v", typeName, err)
	}
	return obj
}

// Pending returns the number of command bytes not yet flushed.
func (p *Pipe) Pending() int { return p.commands.Len() }

// Flush delivers pending commands to the server and its return commands
// back to the client.
func (p *Pipe) Flush(ctx context.Context) error {
	data := bytes.Clone(p.commands.Bytes())
	p.commands.Reset()
	if err := p.Server.HandleCommands(ctx, data); err != nil {
		return err
	}
	returns := bytes.Clone(p.returns.Bytes())
	p.returns.Reset()
	return p.Client.HandleReturnCommands(returns)
}

// MustFlush is Flush with a background context, failing t on error.
func (p *Pipe) MustFlush(t testing.TB) {
	t.Helper()
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

// MustCall calls method on self, failing t on error.
func (p *Pipe) MustCall(t testing.TB, self *dawnwire.Object, method string, args ...any) *dawnwire.Object {
	t.Helper()
	obj, err := p.Client.Call(self, method, args...)
	if err != nil {
		t.Fatalf("%s: %v", method, err)
	}
	return obj
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t testing.TB, w *httptest.ResponseRecorder, expectedStatus int) {
	t.Helper()
	if w.Code != expectedStatus {
		t.Errorf("expected status %d, got %d\nBody: %s", expectedStatus, w.Code, w.Body.String())
	}
}

// DecodeResult decodes the {"result": ...} envelope of a successful response.
func DecodeResult[T any](t testing.TB, w *httptest.ResponseRecorder) T {
	t.Helper()
	AssertStatus(t, w, 200)
	AssertHeader(t, w, "Content-Type", "application/json")
	var env struct {
		Result T `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response: %v\nBody: %s", err, w.Body.String())
	}
	return env.Result
}

// AssertJSONError checks that the response carries an {"error": ...} envelope
// with the expected code.
func AssertJSONError(t testing.TB, w *httptest.ResponseRecorder, expectedCode dawnwire.ErrorCode) *dawnwire.Error {
	t.Helper()

	var env struct {
		Error *dawnwire.Error `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode error response: %v\nBody: %s", err, w.Body.String())
	}
	if env.Error == nil {
		t.Fatalf("response has no error")
	}
	if env.Error.Code != expectedCode {
		t.Errorf("expected error code %s, got %s (message: %s)", expectedCode, env.Error.Code, env.Error.Message)
	}
	if status := expectedCode.HTTPStatus(); w.Code != status {
		t.Errorf("expected status %d for %s, got %d", status, expectedCode, w.Code)
	}
	return env.Error
}

// AssertHeader checks that a response header contains the expected value.
func AssertHeader(t testing.TB, w *httptest.ResponseRecorder, key, expectedValue string) {
	t.Helper()
	actual := w.Header().Get(key)
	if !strings.Contains(actual, expectedValue) {
		t.Errorf("expected header %s=%s, got %s", key, expectedValue, actual)
	}
}
