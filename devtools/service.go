// Package devtools serves read-only inspection endpoints over a built wire schema.
package devtools

import (
	"log/slog"
	"net/http"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	"github.com/broady/dawnwire"
	"github.com/broady/dawnwire/wiregen"
	"github.com/broady/dawnwire/wiregen/ir"
)

var (
	validate     = validator.New()
	queryDecoder = schema.NewDecoder()
)

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
}

// Service provides devtools endpoints for a schema.
// Mount its handler on any mux:
//
//	svc := devtools.New(schema, 8080)
//	http.ListenAndServe(":8080", svc.Handler())
type Service struct {
	schema  *ir.Schema
	port    int
	version string
	logger  *slog.Logger
}

// New creates a new devtools service.
func New(s *ir.Schema, port int) *Service {
	return &Service{schema: s, port: port, logger: slog.Default()}
}

// WithLogger sets the logger for request failures.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithVersion sets the version reported by /status.
func (s *Service) WithVersion(version string) *Service {
	s.version = version
	return s
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.serve(s.ping))
	mux.HandleFunc("GET /schema", s.serveSchema)
	mux.HandleFunc("GET /commands", s.serve(s.commands))
	mux.HandleFunc("GET /info", s.serve(s.info))
	mux.HandleFunc("GET /status", s.serve(s.status))
	return mux
}

type endpoint func(r *http.Request) (any, error)

func (s *Service) serve(fn endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := fn(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := writeResult(w, res); err != nil {
			s.logger.Error("failed to write response", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
	}
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := dawnwire.DefaultErrorTransformer(err)
	if e.Code == dawnwire.CodeInternal {
		s.logger.Error("devtools request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	if err := writeError(w, e); err != nil {
		s.logger.Error("failed to write error", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
}

// decodeQuery fills dst from the query string and validates it.
func decodeQuery(r *http.Request, dst any) error {
	if err := queryDecoder.Decode(dst, r.URL.Query()); err != nil {
		return dawnwire.NewError(dawnwire.CodeInvalidArgument, err.Error())
	}
	return validate.Struct(dst)
}

// PingResponse is the response for /ping.
type PingResponse struct {
	OK bool `json:"ok"`
}

func (s *Service) ping(*http.Request) (any, error) {
	return &PingResponse{OK: true}, nil
}

func (s *Service) serveSchema(w http.ResponseWriter, r *http.Request) {
	data, err := wiregen.Marshal(s.schema, "  ")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write schema", slog.Any("error", err))
	}
}

// CommandsRequest filters the /commands listing.
type CommandsRequest struct {
	// Category is "command" or "return". Empty lists both buckets.
	Category string `schema:"category" validate:"omitempty,oneof=command return"`

	// Prefix keeps commands whose canonical name starts with it.
	Prefix string `schema:"prefix" validate:"omitempty,printascii,max=128"`

	// HasObject keeps commands whose serialization needs (or does not need)
	// an object id resolver.
	HasObject *bool `schema:"has_object"`
}

// CommandSummary describes one command of the schema.
type CommandSummary struct {
	ID            uint32 `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Object        string `json:"object,omitempty"`
	Method        string `json:"method,omitempty"`
	Members       int    `json:"members"`
	FixedSize     int    `json:"fixed_size"`
	Serializable  bool   `json:"serializable"`
	HasDawnObject bool   `json:"has_dawn_object"`
}

// CommandsResponse is the response for /commands.
type CommandsResponse struct {
	Commands []CommandSummary `json:"commands"`
}

func (s *Service) commands(r *http.Request) (any, error) {
	var req CommandsRequest
	if err := decodeQuery(r, &req); err != nil {
		return nil, err
	}
	var buckets [][]*ir.CommandType
	switch req.Category {
	case "command":
		buckets = append(buckets, s.schema.Commands)
	case "return":
		buckets = append(buckets, s.schema.ReturnCommands)
	default:
		buckets = append(buckets, s.schema.Commands, s.schema.ReturnCommands)
	}

	res := &CommandsResponse{Commands: []CommandSummary{}}
	for _, bucket := range buckets {
		for id, cmd := range bucket {
			sum := s.summarize(uint32(id), cmd)
			if !strings.HasPrefix(sum.Name, req.Prefix) {
				continue
			}
			if req.HasObject != nil && sum.HasDawnObject != *req.HasObject {
				continue
			}
			res.Commands = append(res.Commands, sum)
		}
	}
	return res, nil
}

func (s *Service) summarize(id uint32, cmd *ir.CommandType) CommandSummary {
	info, _ := s.schema.Info(cmd.Name.Canonical())
	sum := CommandSummary{
		ID:            id,
		Name:          cmd.Name.Canonical(),
		Category:      cmd.Kind.String(),
		Members:       len(cmd.Members),
		FixedSize:     cmd.FixedSize,
		Serializable:  cmd.Serializable,
		HasDawnObject: info.HasDawnObject,
	}
	if cmd.DerivedObject != nil {
		sum.Object = cmd.DerivedObject.Name.Canonical()
	}
	if cmd.DerivedMethod != nil {
		sum.Method = cmd.DerivedMethod.Name.Canonical()
	}
	return sum
}

// InfoRequest selects a structure or command for /info.
type InfoRequest struct {
	Name string `schema:"name" validate:"required,printascii"`
}

// InfoResponse is the serialization info of one record.
type InfoResponse struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	HasDawnObject bool   `json:"has_dawn_object"`
}

func (s *Service) info(r *http.Request) (any, error) {
	var req InfoRequest
	if err := decodeQuery(r, &req); err != nil {
		return nil, err
	}
	key := ir.CanonicalKey(req.Name)
	info, ok := s.schema.Info(key)
	if !ok {
		return nil, dawnwire.Errorf(dawnwire.CodeUnknownCommand, "no serialization info for %q", req.Name)
	}
	res := &InfoResponse{Name: key, HasDawnObject: info.HasDawnObject}
	if d, ok := s.schema.Types.Lookup(key); ok {
		res.Category = d.Category().String()
	}
	return res, nil
}

// StatusResponse provides service status and schema totals.
type StatusResponse struct {
	// OK indicates the service is healthy.
	OK             bool        `json:"ok"`
	Port           int         `json:"port"`
	Version        string      `json:"version,omitempty"`
	GoVersion      string      `json:"go_version"`
	NumGoroutines  int         `json:"num_goroutines"`
	Memory         MemoryStats `json:"memory"`
	Commands       int         `json:"commands"`
	ReturnCommands int         `json:"return_commands"`
	Objects        int         `json:"objects"`
	Structures     int         `json:"structures"`
	Warnings       int         `json:"warnings"`
}

// MemoryStats contains memory statistics.
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

func (s *Service) status(*http.Request) (any, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &StatusResponse{
		OK:            true,
		Port:          s.port,
		Version:       s.version,
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
		Commands:       len(s.schema.Commands),
		ReturnCommands: len(s.schema.ReturnCommands),
		Objects:        len(s.schema.Types.Objects()),
		Structures:     len(s.schema.Structures),
		Warnings:       len(s.schema.Warnings),
	}, nil
}
