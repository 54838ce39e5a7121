package wiregen

import (
	"context"
	"log/slog"

	"github.com/broady/dawnwire/wiregen/ir"
	"github.com/broady/dawnwire/wiregen/load"
)

// Names of synthesized members.
var (
	nameSelf          = ir.MustParseName("self")
	nameResult        = ir.MustParseName("result")
	nameErrorCallback = ir.MustParseName("error callback")
	nameBuiltObject   = ir.MustParseName("built object")
	nameStatus        = ir.MustParseName("status")
	nameMessage       = ir.MustParseName("message")
)

// Synthesizer derives command and return command records from the object
// methods, builder objects and declared commands of a linked description.
type Synthesizer struct {
	Types *ir.Table

	// ClientSide holds UpperCamel names of commands the client handles
	// itself. Methods yielding them are not synthesized.
	ClientSide map[string]bool

	// WarnUnsupported records a Warning for every skipped method.
	WarnUnsupported bool

	Logger *slog.Logger
}

// Synthesized is the unsorted output of Synthesize.
type Synthesized struct {
	Commands       []*ir.CommandType
	ReturnCommands []*ir.CommandType
	Warnings       []ir.Warning
}

func (s *Synthesizer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Synthesize runs method synthesis, builder callback synthesis and declared
// command instantiation, in that order.
func (s *Synthesizer) Synthesize(declared []load.DeclaredCommand) (*Synthesized, error) {
	out := &Synthesized{}
	seen := make(map[string]*ir.CommandType)
	add := func(cmd *ir.CommandType) error {
		key := cmd.Name.Canonical()
		if prev, ok := seen[key]; ok {
			return ir.Errorf(ir.PhaseSynthesize, key, "%w: %s collides with %s", ir.ErrNameCollision, cmd.Kind, prev.Kind)
		}
		seen[key] = cmd
		if cmd.Kind == ir.CategoryReturnCommand {
			out.ReturnCommands = append(out.ReturnCommands, cmd)
		} else {
			out.Commands = append(out.Commands, cmd)
		}
		return nil
	}

	objects := s.Types.Objects()
	for _, obj := range objects {
		for _, m := range obj.Methods {
			cmd, err := s.methodCommand(obj, m, out)
			if err != nil {
				return nil, err
			}
			if cmd == nil {
				continue
			}
			if err := add(cmd); err != nil {
				return nil, err
			}
		}
	}

	for _, obj := range objects {
		if !obj.IsBuilder {
			continue
		}
		cmd, err := s.builderCallback(obj)
		if err != nil {
			return nil, err
		}
		if err := add(cmd); err != nil {
			return nil, err
		}
	}

	for _, d := range declared {
		if d.Category != ir.CategoryCommand && d.Category != ir.CategoryReturnCommand {
			return nil, ir.Errorf(ir.PhaseSynthesize, d.Name.Canonical(), "%w: declared %s", ir.ErrInvalidDescription, d.Category)
		}
		if err := add(ir.NewCommand(d.Category, d.Name, d.Members)); err != nil {
			return nil, err
		}
	}

	s.logger().Debug("synthesized commands",
		slog.Int("commands", len(out.Commands)),
		slog.Int("return_commands", len(out.ReturnCommands)),
		slog.Int("declared", len(declared)))
	return out, nil
}

// methodCommand returns nil for methods that are not representable.
func (s *Synthesizer) methodCommand(obj *ir.ObjectType, m *ir.Method, out *Synthesized) (*ir.CommandType, error) {
	name := ir.ConcatNames(obj.Name, m.Name)
	if !m.ReturnsVoid() && !m.ReturnsObject() {
		level := slog.LevelDebug
		if s.WarnUnsupported {
			level = slog.LevelWarn
		}
		s.logger().Log(context.Background(), level, "skipping unsupported method",
			slog.String("command", name.Canonical()),
			slog.String("returns", m.ReturnType.TypeName().Canonical()))
		if s.WarnUnsupported {
			out.Warnings = append(out.Warnings, ir.Warning{
				Code:     ir.WarnUnsupportedMethod,
				Message:  "return type " + m.ReturnType.TypeName().Canonical() + " (" + m.ReturnType.Category().String() + ") cannot be sent over the wire",
				TypeName: name.Canonical(),
			})
		}
		return nil, nil
	}
	if s.ClientSide[name.UpperCamel()] {
		s.logger().Debug("skipping client side method", slog.String("command", name.Canonical()))
		if s.WarnUnsupported {
			out.Warnings = append(out.Warnings, ir.Warning{
				Code:     ir.WarnClientSideMethod,
				Message:  "handled by the client",
				TypeName: name.Canonical(),
			})
		}
		return nil, nil
	}

	members := make([]*ir.RecordMember, 0, len(m.Arguments)+2)
	members = append(members, ir.NewMember(nameSelf, obj))
	members = append(members, m.Arguments...)
	if m.ReturnsObject() {
		handle, err := s.Types.MustLookup(ir.PhaseSynthesize, name.Canonical(), ir.NativeObjectHandle)
		if err != nil {
			return nil, err
		}
		result := ir.NewMember(nameResult, handle)
		result.IsReturnValue = true
		result.SetHandleType(m.ReturnType.(*ir.ObjectType))
		members = append(members, result)
	}

	cmd := ir.NewCommand(ir.CategoryCommand, name, members)
	cmd.DerivedObject = obj
	cmd.DerivedMethod = m
	return cmd, nil
}

// builderCallback builds "<object> error callback": the built object handle,
// a uint32_t status and a null-terminated message.
func (s *Synthesizer) builderCallback(obj *ir.ObjectType) (*ir.CommandType, error) {
	name := ir.ConcatNames(obj.Name, nameErrorCallback)
	entity := name.Canonical()
	if obj.BuiltType == nil {
		return nil, ir.Errorf(ir.PhaseSynthesize, obj.Name.Canonical(), "%w", ir.ErrMissingBuiltType)
	}
	handle, err := s.Types.MustLookup(ir.PhaseSynthesize, entity, ir.NativeObjectHandle)
	if err != nil {
		return nil, err
	}
	u32, err := s.Types.MustLookup(ir.PhaseSynthesize, entity, "uint32_t")
	if err != nil {
		return nil, err
	}
	char, err := s.Types.MustLookup(ir.PhaseSynthesize, entity, "char")
	if err != nil {
		return nil, err
	}

	built := ir.NewMember(nameBuiltObject, handle)
	built.SetHandleType(obj.BuiltType)

	message := ir.NewMember(nameMessage, char)
	message.Annotation = ir.AnnotationConstPointer
	message.Length = ir.Length{Kind: ir.LengthStrlen}

	cmd := ir.NewCommand(ir.CategoryReturnCommand, name, []*ir.RecordMember{
		built,
		ir.NewMember(nameStatus, u32),
		message,
	})
	cmd.DerivedObject = obj
	return cmd, nil
}
