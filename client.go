package dawnwire

import (
	"io"
	"log/slog"
	"sync"

	"github.com/broady/dawnwire/wiregen/ir"
)

// DestroyObjectCommand is the declared command a Client sends when the last
// reference to an object is released. Schemas without it never destroy
// objects on the server.
const DestroyObjectCommand = "destroy object"

// ErrorCallback receives the outcome of a builder.
type ErrorCallback func(status uint32, message string)

// ReturnHandler receives return commands that are not builder callbacks.
type ReturnHandler func(cmd *ir.CommandType, values []any)

// Object is a client side proxy for a server object.
type Object struct {
	Type   *ir.ObjectType
	Handle ObjectHandle

	refs     int
	callback ErrorCallback
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Commands receives serialized commands. Required.
	Commands io.Writer

	// OnReturn receives return commands other than builder callbacks.
	OnReturn ReturnHandler

	// Logger for diagnostics (default: slog.Default()).
	Logger *slog.Logger
}

// Client issues commands for the objects it owns and routes return commands
// back to them. It is safe for concurrent use.
type Client struct {
	schema     *ir.Schema
	serializer *Serializer
	cfg        ClientConfig
	logger     *slog.Logger

	// allocators is fixed at construction; only its values mutate.
	allocators map[*ir.ObjectType]*ObjectAllocator[*Object]

	mu sync.Mutex
}

// NewClient returns a Client for schema.
func NewClient(schema *ir.Schema, cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		schema:     schema,
		serializer: NewSerializer(schema),
		cfg:        cfg,
		logger:     logger,
		allocators: make(map[*ir.ObjectType]*ObjectAllocator[*Object]),
	}
	for _, obj := range schema.Types.Objects() {
		c.allocators[obj] = NewObjectAllocator[*Object]()
	}
	return c
}

func objectType(schema *ir.Schema, name string) (*ir.ObjectType, error) {
	d, ok := schema.Types.Lookup(name)
	if !ok {
		return nil, Errorf(CodeInvalidArgument, "unknown type %q", name)
	}
	obj, ok := d.(*ir.ObjectType)
	if !ok {
		return nil, Errorf(CodeInvalidArgument, "%q is a %s, not an object", name, d.Category())
	}
	return obj, nil
}

// Inject allocates a root object of the named type, such as the device.
// The returned handle must be injected into the Server as well.
func (c *Client) Inject(typeName string) (*Object, error) {
	t, err := objectType(c.schema, typeName)
	if err != nil {
		return nil, err
	}
	return c.newObject(t), nil
}

func (c *Client) newObject(t *ir.ObjectType) *Object {
	obj := &Object{Type: t, refs: 1}
	obj.Handle = c.allocators[t].New(obj)
	return obj
}

// Get returns the live object with id, or nil.
func (c *Client) Get(typeName string, id ObjectID) *Object {
	t, err := objectType(c.schema, typeName)
	if err != nil {
		return nil
	}
	return c.allocators[t].Get(id)
}

// ObjectID implements ObjectIDProvider for objects owned by c.
func (c *Client) ObjectID(t *ir.ObjectType, v any) (ObjectID, error) {
	obj, ok := v.(*Object)
	if !ok {
		return 0, Errorf(CodeInvalidArgument, "want *Object for %s, got %T", t.Name.Canonical(), v)
	}
	if obj.Type != t {
		return 0, Errorf(CodeInvalidArgument, "object %v is a %s, want %s", obj.Handle, obj.Type.Name.Canonical(), t.Name.Canonical())
	}
	if c.allocators[t].Get(obj.Handle.ID) != obj {
		return 0, Errorf(CodeStaleHandle, "%s %v has been released", t.Name.Canonical(), obj.Handle)
	}
	return obj.Handle.ID, nil
}

// ResolveObject implements ObjectIDResolver for objects owned by c.
func (c *Client) ResolveObject(t *ir.ObjectType, id ObjectID) (any, error) {
	alloc, ok := c.allocators[t]
	if !ok {
		return nil, Errorf(CodeInvalidArgument, "unknown object type %s", t.Name.Canonical())
	}
	obj := alloc.Get(id)
	if obj == nil {
		return nil, Errorf(CodeInvalidArgument, "no live %s with id %d", t.Name.Canonical(), id)
	}
	return obj, nil
}

// Call issues method on self with args in declaration order. If the method
// returns an object, a proxy for it is allocated and returned.
//
// Calling a builder method that yields the built type hands the builder's
// error callback off to the built object.
func (c *Client) Call(self *Object, method string, args ...any) (*Object, error) {
	if self == nil {
		return nil, NewError(CodeInvalidArgument, "call on nil object")
	}
	cmd := c.schema.FindMethodCommand(self.Type, method)
	if cmd == nil {
		return nil, Errorf(CodeUnknownCommand, "%s has no wire method %q", self.Type.Name.Canonical(), method)
	}

	outputs := cmd.Outputs()
	if want := len(cmd.Members) - 1 - len(outputs); len(args) != want {
		return nil, Errorf(CodeInvalidArgument, "%s takes %d arguments, got %d", cmd.Name.Canonical(), want, len(args))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	values := make([]any, 0, len(cmd.Members))
	values = append(values, self)
	values = append(values, args...)

	var result *Object
	if len(outputs) > 0 {
		result = c.newObject(outputs[0].HandleType)
		values = append(values, result.Handle)
	}

	data, err := c.serializer.SerializeCommand(cmd, values, c)
	if err != nil {
		if result != nil {
			c.allocators[result.Type].Free(result.Handle.ID)
		}
		return nil, err
	}
	if _, err := c.cfg.Commands.Write(data); err != nil {
		if result != nil {
			c.allocators[result.Type].Free(result.Handle.ID)
		}
		return nil, Errorf(CodeFatal, "failed to write %s: %v", cmd.Name.Canonical(), err)
	}

	if result != nil && self.Type.IsBuilder && result.Type == self.Type.BuiltType {
		result.callback = self.callback
		self.callback = nil
	}
	return result, nil
}

// SetErrorCallback registers cb on a builder. The callback moves to the
// built object once the builder produces it.
func (c *Client) SetErrorCallback(obj *Object, cb ErrorCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj.callback = cb
}

// Reference adds a reference to obj.
func (c *Client) Reference(obj *Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj.refs++
}

// Release drops a reference to obj. When the last reference goes, a pending
// builder callback fires with BuilderStatusUnknown, the server is told to
// destroy the object, and its id is freed for reuse.
func (c *Client) Release(obj *Object) error {
	c.mu.Lock()
	if obj.refs <= 0 {
		c.mu.Unlock()
		return Errorf(CodeInvalidArgument, "%s %v is already released", obj.Type.Name.Canonical(), obj.Handle)
	}
	obj.refs--
	if obj.refs > 0 {
		c.mu.Unlock()
		return nil
	}
	cb := obj.callback
	obj.callback = nil

	var err error
	if destroy := c.schema.FindCommand(DestroyObjectCommand); destroy != nil {
		err = c.sendDestroy(destroy, obj)
	}
	c.allocators[obj.Type].Free(obj.Handle.ID)
	c.mu.Unlock()

	if cb != nil {
		cb(BuilderStatusUnknown, "object released before the builder finished")
	}
	return err
}

func (c *Client) sendDestroy(destroy *ir.CommandType, obj *Object) error {
	typeIndex, ok := c.schema.ObjectTypeIndex(obj.Type)
	if !ok {
		return Errorf(CodeInvalidArgument, "object type %s is not in the schema", obj.Type.Name.Canonical())
	}
	data, err := c.serializer.SerializeCommand(destroy, []any{typeIndex, obj.Handle.ID}, c)
	if err != nil {
		return err
	}
	if _, err := c.cfg.Commands.Write(data); err != nil {
		return Errorf(CodeFatal, "failed to write %s: %v", destroy.Name.Canonical(), err)
	}
	return nil
}

// HandleReturnCommands decodes and dispatches every return command in data.
//
// Builder callbacks go to the built object's error callback, at most once,
// and only if the object still has the generation the server saw. Other
// return commands go to ClientConfig.OnReturn.
func (c *Client) HandleReturnCommands(data []byte) error {
	for len(data) > 0 {
		dec, err := c.serializer.DeserializeCommand(data, ir.CategoryReturnCommand, c)
		if err != nil {
			return err
		}
		data = data[dec.Size:]

		if dec.Command.IsBuilderCallback() {
			c.builderCallback(dec)
			continue
		}
		if c.cfg.OnReturn == nil {
			c.logger.Debug("dropping return command", slog.String("command", dec.Command.Name.Canonical()))
			continue
		}
		c.cfg.OnReturn(dec.Command, dec.Values)
	}
	return nil
}

func (c *Client) builderCallback(dec *Decoded) {
	built := dec.Command.DerivedObject.BuiltType
	handle, _ := dec.Values[0].(ObjectHandle)
	status, _ := dec.Values[1].(uint32)
	message, _ := dec.Values[2].(string)

	c.mu.Lock()
	obj := c.allocators[built].Get(handle.ID)
	var cb ErrorCallback
	if obj != nil && obj.Handle.Generation == handle.Generation {
		cb = obj.callback
		obj.callback = nil
	}
	c.mu.Unlock()

	if cb == nil {
		c.logger.Debug("ignoring builder callback",
			slog.String("command", dec.Command.Name.Canonical()),
			slog.String("handle", handle.String()))
		return
	}
	cb(status, message)
}
