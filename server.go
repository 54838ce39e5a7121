package dawnwire

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"

	"github.com/broady/dawnwire/wiregen/ir"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Handler executes decoded commands. The default handler accepts every
	// command and produces nil objects.
	Handler HandlerFunc

	// Interceptors wrap Handler. The first one runs outermost.
	Interceptors []Interceptor

	// Returns receives serialized return commands. Without it builder
	// callbacks are dropped and SendReturn fails.
	Returns io.Writer

	// ErrorTransformer maps handler errors (default: DefaultErrorTransformer).
	ErrorTransformer ErrorTransformer

	// OnError is told about every failed handler call that did not abort the
	// stream.
	OnError func(ctx context.Context, call *Call, err *Error)

	// Logger for diagnostics (default: slog.Default()).
	Logger *slog.Logger
}

// serverObject is the slot value of a known object. Error objects have no
// value; commands using them are skipped and their results become error
// objects in turn.
type serverObject struct {
	value   any
	isError bool
}

// Server decodes command streams, keeps the table of known objects and runs
// commands through the handler chain.
//
// HandleCommands calls are serialized. Handlers may call SendReturn but must
// not call HandleCommands.
type Server struct {
	schema     *ir.Schema
	serializer *Serializer
	cfg        ServerConfig
	logger     *slog.Logger
	handler    HandlerFunc

	// objects is fixed at construction; only its values mutate.
	objects map[*ir.ObjectType]*KnownObjects[*serverObject]

	mu      sync.Mutex
	writeMu sync.Mutex
}

// NewServer returns a Server for schema.
func NewServer(schema *ir.Schema, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handler := cfg.Handler
	if handler == nil {
		handler = func(context.Context, *Call) (any, error) { return nil, nil }
	}
	s := &Server{
		schema:     schema,
		serializer: NewSerializer(schema),
		cfg:        cfg,
		logger:     logger,
		handler:    wrap(handler, chainInterceptors(cfg.Interceptors)),
		objects:    make(map[*ir.ObjectType]*KnownObjects[*serverObject]),
	}
	for _, obj := range schema.Types.Objects() {
		s.objects[obj] = NewKnownObjects[*serverObject]()
	}
	return s
}

// Inject registers a root object under the handle the client allocated.
func (s *Server) Inject(typeName string, h ObjectHandle, v any) error {
	t, err := objectType(s.schema, typeName)
	if err != nil {
		return err
	}
	return s.objects[t].Inject(h, &serverObject{value: v})
}

// Object returns the value of a known object. Error objects report false.
func (s *Server) Object(typeName string, id ObjectID) (any, bool) {
	t, err := objectType(s.schema, typeName)
	if err != nil {
		return nil, false
	}
	obj, ok := s.objects[t].Get(id)
	if !ok || obj == nil || obj.isError {
		return nil, false
	}
	return obj.value, true
}

// IsErrorObject reports whether id names an error object.
func (s *Server) IsErrorObject(typeName string, id ObjectID) bool {
	t, err := objectType(s.schema, typeName)
	if err != nil {
		return false
	}
	obj, ok := s.objects[t].Get(id)
	return ok && obj != nil && obj.isError
}

// ResolveObject implements ObjectIDResolver over the known objects.
func (s *Server) ResolveObject(t *ir.ObjectType, id ObjectID) (any, error) {
	known, ok := s.objects[t]
	if !ok {
		return nil, Errorf(CodeInvalidArgument, "unknown object type %s", t.Name.Canonical())
	}
	obj, ok := known.Get(id)
	if !ok {
		return nil, Errorf(CodeInvalidArgument, "unknown %s id %d", t.Name.Canonical(), id)
	}
	return obj, nil
}

// ObjectID implements ObjectIDProvider for return commands. It accepts an
// ObjectID, an ObjectHandle, or a value previously produced by a handler.
func (s *Server) ObjectID(t *ir.ObjectType, v any) (ObjectID, error) {
	switch id := v.(type) {
	case ObjectID:
		return id, nil
	case ObjectHandle:
		return id.ID, nil
	}
	known, ok := s.objects[t]
	if !ok {
		return 0, Errorf(CodeInvalidArgument, "unknown object type %s", t.Name.Canonical())
	}
	if v == nil || !reflect.TypeOf(v).Comparable() {
		return 0, Errorf(CodeInvalidArgument, "%s value %T cannot be looked up", t.Name.Canonical(), v)
	}
	id, ok := known.Find(func(o *serverObject) bool { return o != nil && !o.isError && o.value == v })
	if !ok {
		return 0, Errorf(CodeInvalidArgument, "value is not a known %s", t.Name.Canonical())
	}
	return id, nil
}

// HandleCommands decodes and executes every command in data, in order.
//
// Decoding failures, handle allocation failures and CodeFatal handler errors
// stop processing and are returned. Other handler errors turn the command's
// result into an error object and are passed to ServerConfig.OnError.
func (s *Server) HandleCommands(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		dec, err := s.serializer.DeserializeCommand(data, ir.CategoryCommand, s)
		if err != nil {
			return err
		}
		data = data[dec.Size:]
		if err := s.execute(ctx, dec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) execute(ctx context.Context, dec *Decoded) error {
	cmd := dec.Command
	values, usesError := unwrapObjects(dec.Values)

	switch {
	case cmd.Name.Canonical() == DestroyObjectCommand:
		return s.destroy(ctx, cmd, values)
	case cmd.DerivedMethod != nil:
		return s.method(ctx, cmd, values, usesError)
	}

	call := &Call{Command: cmd, Args: values}
	if usesError {
		return s.report(ctx, call, Errorf(CodeErrorObject, "%s uses an error object", cmd.Name.Canonical()))
	}
	_, err := s.invoke(ctx, call)
	return s.report(ctx, call, err)
}

func (s *Server) method(ctx context.Context, cmd *ir.CommandType, values []any, usesError bool) error {
	outputs := cmd.Outputs()
	n := len(values) - len(outputs)
	call := &Call{Command: cmd, Self: values[0], Args: values[1:n]}

	var known *KnownObjects[*serverObject]
	if len(outputs) > 0 {
		call.Result, _ = values[n].(ObjectHandle)
		known = s.objects[outputs[0].HandleType]
		if err := known.Allocate(call.Result); err != nil {
			return err
		}
	}

	var res any
	var err error
	if usesError {
		err = Errorf(CodeErrorObject, "%s uses an error object", cmd.Name.Canonical())
	} else {
		res, err = s.invoke(ctx, call)
	}
	if known != nil {
		known.Set(call.Result.ID, &serverObject{value: res, isError: err != nil})
	}

	obj := cmd.DerivedObject
	if obj.IsBuilder && len(outputs) > 0 && outputs[0].HandleType == obj.BuiltType {
		if cbErr := s.sendBuilderCallback(obj, call.Result, err); cbErr != nil {
			return cbErr
		}
	}
	return s.report(ctx, call, err)
}

func (s *Server) destroy(ctx context.Context, cmd *ir.CommandType, values []any) error {
	if len(values) != 2 {
		return Errorf(CodeInvalidArgument, "%s must have an object type and an object id", cmd.Name.Canonical())
	}
	typeIndex, ok := toCount(values[0])
	objects := s.schema.Types.Objects()
	if !ok || typeIndex >= uint64(len(objects)) {
		return Errorf(CodeInvalidArgument, "%s: invalid object type %v", cmd.Name.Canonical(), values[0])
	}
	id, ok := values[1].(ObjectID)
	if !ok {
		n, isCount := toCount(values[1])
		if !isCount {
			return Errorf(CodeInvalidArgument, "%s: invalid object id %v", cmd.Name.Canonical(), values[1])
		}
		id = ObjectID(n)
	}

	t := objects[typeIndex]
	obj, ok := s.objects[t].Free(id)
	if !ok {
		return Errorf(CodeInvalidArgument, "%s: unknown %s id %d", cmd.Name.Canonical(), t.Name.Canonical(), id)
	}
	if obj == nil || obj.isError {
		return nil
	}
	call := &Call{Command: cmd, Self: obj.value, Args: values}
	_, err := s.invoke(ctx, call)
	return s.report(ctx, call, err)
}

func (s *Server) invoke(ctx context.Context, call *Call) (any, error) {
	return s.handler(newCallContext(ctx, call), call)
}

// report returns err only when it must stop the stream.
func (s *Server) report(ctx context.Context, call *Call, err error) error {
	if err == nil {
		return nil
	}
	wireErr := s.transform(err)
	if wireErr.Code == CodeFatal {
		return wireErr
	}
	s.logger.DebugContext(ctx, "command produced an error",
		slog.String("command", call.Name()),
		slog.String("code", string(wireErr.Code)),
		slog.String("message", wireErr.Message))
	if wireErr.Code != CodeErrorObject && s.cfg.OnError != nil {
		s.cfg.OnError(ctx, call, wireErr)
	}
	return nil
}

func (s *Server) transform(err error) *Error {
	if s.cfg.ErrorTransformer != nil {
		if wireErr := s.cfg.ErrorTransformer(err); wireErr != nil {
			return wireErr
		}
	}
	return DefaultErrorTransformer(err)
}

func (s *Server) sendBuilderCallback(builder *ir.ObjectType, built ObjectHandle, err error) error {
	cmd := s.schema.BuilderCallback(builder)
	if cmd == nil {
		return nil
	}
	if s.cfg.Returns == nil {
		s.logger.Debug("dropping builder callback without a return writer",
			slog.String("command", cmd.Name.Canonical()))
		return nil
	}
	status, message := BuilderStatusSuccess, ""
	if err != nil {
		status, message = BuilderStatusError, s.transform(err).Message
	}
	return s.sendReturn(cmd, []any{built, status, message})
}

// SendReturn serializes and writes the named return command.
func (s *Server) SendReturn(name string, values ...any) error {
	cmd := s.schema.FindCommand(name)
	if cmd == nil || cmd.Kind != ir.CategoryReturnCommand {
		return Errorf(CodeUnknownCommand, "no return command %q", name)
	}
	if s.cfg.Returns == nil {
		return NewError(CodeFatal, "server has no return writer")
	}
	return s.sendReturn(cmd, values)
}

func (s *Server) sendReturn(cmd *ir.CommandType, values []any) error {
	data, err := s.serializer.SerializeCommand(cmd, values, s)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.cfg.Returns.Write(data); err != nil {
		return Errorf(CodeFatal, "failed to write %s: %v", cmd.Name.Canonical(), err)
	}
	return nil
}

// unwrapObjects replaces resolved known objects by their values and reports
// whether any of them is an error object.
func unwrapObjects(values []any) ([]any, bool) {
	out := make([]any, len(values))
	usesError := false
	for i, v := range values {
		switch o := v.(type) {
		case *serverObject:
			if o == nil || o.isError {
				usesError = true
				continue
			}
			out[i] = o.value
		case []any:
			inner, innerError := unwrapObjects(o)
			out[i] = inner
			usesError = usesError || innerError
		default:
			out[i] = v
		}
	}
	return out, usesError
}
