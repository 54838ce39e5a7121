package devtools

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/broady/dawnwire"
	"github.com/broady/dawnwire/testutil"
	"github.com/broady/dawnwire/wiregen"
	"github.com/broady/dawnwire/wiregen/ir"
)

const testAPI = `{
	"uint32_t": {"category": "native"},
	"device": {
		"category": "object",
		"methods": [
			{"name": "create buffer", "returns": "buffer", "args": [{"name": "descriptor", "type": "buffer descriptor", "annotation": "const*"}]},
			{"name": "get queue", "returns": "queue"}
		]
	},
	"buffer": {"category": "object", "methods": [{"name": "unmap"}]},
	"queue": {"category": "object", "methods": [{"name": "write buffer", "args": [{"name": "buffer", "type": "buffer"}, {"name": "size", "type": "uint32_t"}]}]},
	"buffer descriptor": {"category": "structure", "members": [{"name": "size", "type": "uint32_t"}]}
}`

const testWire = `{
	"buffer map async callback": {
		"category": "return command",
		"members": [{"name": "status", "type": "uint32_t"}]
	}
}`

func testSchema(t *testing.T) *ir.Schema {
	return testutil.Schema(t, testAPI, testWire)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestService_Ping(t *testing.T) {
	h := New(testSchema(t), 0).Handler()
	res := testutil.DecodeResult[PingResponse](t, get(t, h, "/ping"))
	if !res.OK {
		t.Error("expected ok")
	}
}

func TestService_Schema(t *testing.T) {
	s := testSchema(t)
	w := get(t, New(s, 0).Handler(), "/schema")
	testutil.AssertStatus(t, w, http.StatusOK)
	want, err := wiregen.Marshal(s, "  ")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(want), w.Body.String()); diff != "" {
		t.Errorf("schema dump mismatch (-want +got):\n%s", diff)
	}
	testutil.AssertHeader(t, w, "Content-Type", "application/json")
}

func TestService_Commands(t *testing.T) {
	h := New(testSchema(t), 0).Handler()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "all",
			query: "",
			want: []string{
				"buffer unmap", "device create buffer", "device get queue", "queue write buffer",
				"buffer map async callback",
			},
		},
		{name: "return commands", query: "?category=return", want: []string{"buffer map async callback"}},
		{name: "prefix", query: "?category=command&prefix=device", want: []string{"device create buffer", "device get queue"}},
		{name: "with objects", query: "?category=command&has_object=true", want: []string{
			"buffer unmap", "device create buffer", "device get queue", "queue write buffer",
		}},
		{name: "without objects", query: "?has_object=false", want: []string{"buffer map async callback"}},
		{name: "no match", query: "?prefix=zzz", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := testutil.DecodeResult[CommandsResponse](t, get(t, h, "/commands"+tt.query))
			var got []string
			for _, c := range res.Commands {
				got = append(got, c.Name)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestService_CommandSummary(t *testing.T) {
	h := New(testSchema(t), 0).Handler()
	res := testutil.DecodeResult[CommandsResponse](t, get(t, h, "/commands?prefix=queue"))
	want := []CommandSummary{{
		ID:            3,
		Name:          "queue write buffer",
		Category:      "command",
		Object:        "queue",
		Method:        "write buffer",
		Members:       3,
		FixedSize:     8 + 4 + 4 + 4,
		Serializable:  true,
		HasDawnObject: true,
	}}
	if diff := cmp.Diff(want, res.Commands); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestService_Errors(t *testing.T) {
	h := New(testSchema(t), 0).Handler()

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   dawnwire.ErrorCode
	}{
		{name: "bad category", target: "/commands?category=structure", wantStatus: http.StatusBadRequest, wantCode: dawnwire.CodeInvalidArgument},
		{name: "bad bool", target: "/commands?has_object=maybe", wantStatus: http.StatusBadRequest, wantCode: dawnwire.CodeInvalidArgument},
		{name: "missing name", target: "/info", wantStatus: http.StatusBadRequest, wantCode: dawnwire.CodeInvalidArgument},
		{name: "unknown name", target: "/info?name=nothing", wantStatus: http.StatusNotFound, wantCode: dawnwire.CodeUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, h, tt.target)
			testutil.AssertStatus(t, w, tt.wantStatus)
			testutil.AssertJSONError(t, w, tt.wantCode)
		})
	}
}

func TestService_MethodNotAllowed(t *testing.T) {
	h := New(testSchema(t), 0).Handler()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/schema", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestService_Info(t *testing.T) {
	h := New(testSchema(t), 0).Handler()

	tests := []struct {
		query string
		want  InfoResponse
	}{
		{query: "buffer+descriptor", want: InfoResponse{Name: "buffer descriptor", Category: "structure"}},
		{query: "Device+Create+Buffer", want: InfoResponse{Name: "device create buffer", Category: "command", HasDawnObject: true}},
		{query: "buffer+map+async+callback", want: InfoResponse{Name: "buffer map async callback", Category: "return command"}},
	}
	for _, tt := range tests {
		t.Run(tt.want.Name, func(t *testing.T) {
			got := testutil.DecodeResult[InfoResponse](t, get(t, h, "/info?name="+tt.query))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("info mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestService_Status(t *testing.T) {
	h := New(testSchema(t), 8080).WithVersion("v1.2.3").WithLogger(nil).Handler()
	res := testutil.DecodeResult[StatusResponse](t, get(t, h, "/status"))
	if !res.OK || res.Port != 8080 || res.Version != "v1.2.3" {
		t.Errorf("status = %+v", res)
	}
	if res.Commands != 4 || res.ReturnCommands != 1 || res.Objects != 3 || res.Structures != 1 {
		t.Errorf("totals = %d/%d/%d/%d", res.Commands, res.ReturnCommands, res.Objects, res.Structures)
	}
	if res.GoVersion == "" || res.NumGoroutines == 0 {
		t.Errorf("runtime info missing: %+v", res)
	}
}
