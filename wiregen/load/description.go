// Package load reads API and wire descriptions and links them into a frozen
// type table. Its output is the input of the command synthesizer.
package load

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"

	"github.com/broady/dawnwire/wiregen/ir"
)

var validate = validator.New()

// Entry is one named item of an API description.
type Entry struct {
	Category string `json:"category" validate:"required,oneof=native primitive 'natively defined' enum bitmask object structure"`

	// Objects
	Methods []Method `json:"methods" validate:"dive"`
	Builder *bool    `json:"builder"`
	Builds  string   `json:"builds"`

	// Structures
	Members    []Member `json:"members" validate:"dive"`
	Extensible any      `json:"extensible"`
	Chained    string   `json:"chained"`

	// Enums and bitmasks
	Values []Value `json:"values" validate:"dive"`
}

// Method is an object method declaration.
type Method struct {
	Name    string   `json:"name" validate:"required"`
	Returns string   `json:"returns"`
	Args    []Member `json:"args" validate:"dive"`
}

// Member is a structure member, method argument or wire command member.
type Member struct {
	Name       string `json:"name" validate:"required"`
	Type       string `json:"type" validate:"required"`
	Annotation string `json:"annotation" validate:"omitempty,oneof=value const* * const*const* handle"`
	Optional   bool   `json:"optional"`
	Length     any    `json:"length"`
	HandleType string `json:"handle_type"`
}

// Value is one enum or bitmask value.
type Value struct {
	Name  string `json:"name" validate:"required"`
	Value uint64 `json:"value"`
}

// APIDescription is a parsed API description.
type APIDescription struct {
	// Entries keyed by their declared name.
	Entries map[string]*Entry

	// Params are underscore-prefixed entries, keyed without the underscore.
	Params map[string]any
}

// WireCommand is a command declared directly by the wire description.
type WireCommand struct {
	Name     string
	Category ir.Category
	Members  []Member
}

// WireDescription is a parsed wire description.
type WireDescription struct {
	// Commands sorted by canonical name.
	Commands []WireCommand

	// Params are schema level parameters.
	Params map[string]any

	// ClientSideCommands lists UpperCamel command names handled entirely by
	// the client. Methods yielding them are not synthesized.
	ClientSideCommands []string
}

// Format selects the decoder of a description file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf picks the format from a file extension. Unknown extensions are JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// toJSON normalizes data to JSON bytes.
func toJSON(data []byte, format Format) ([]byte, error) {
	if format == FormatJSON {
		return data, nil
	}
	out, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert yaml: %w", err)
	}
	return out, nil
}

// ReadAPI reads and parses an API description file.
func ReadAPI(path string) (*APIDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read api description: %w", err)
	}
	return ParseAPI(data, FormatOf(path))
}

// ReadWire reads and parses a wire description file.
func ReadWire(path string) (*WireDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wire description: %w", err)
	}
	return ParseWire(data, FormatOf(path))
}

// ParseAPI decodes an API description. Every malformed entry is reported,
// not just the first.
func ParseAPI(data []byte, format Format) (*APIDescription, error) {
	data, err := toJSON(data, format)
	if err != nil {
		return nil, ir.Errorf(ir.PhaseParse, "", "%w: %v", ir.ErrInvalidDescription, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ir.Errorf(ir.PhaseParse, "", "%w: %v", ir.ErrInvalidDescription, err)
	}

	desc := &APIDescription{
		Entries: make(map[string]*Entry),
		Params:  make(map[string]any),
	}
	var errs *multierror.Error
	for _, name := range sortedKeys(raw) {
		if strings.HasPrefix(name, "_") {
			var v any
			if err := json.Unmarshal(raw[name], &v); err != nil {
				errs = multierror.Append(errs, ir.Errorf(ir.PhaseParse, name, "%w: %v", ir.ErrInvalidDescription, err))
				continue
			}
			desc.Params[ir.CanonicalKey(strings.TrimPrefix(name, "_"))] = v
			continue
		}
		if _, err := ir.ParseName(name); err != nil {
			errs = multierror.Append(errs, ir.Errorf(ir.PhaseParse, name, "%w", err))
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw[name], &e); err != nil {
			errs = multierror.Append(errs, ir.Errorf(ir.PhaseParse, name, "%w: %v", ir.ErrInvalidDescription, err))
			continue
		}
		if err := validate.Struct(&e); err != nil {
			errs = multierror.Append(errs, ir.Errorf(ir.PhaseParse, name, "%w: %s", ir.ErrInvalidDescription, formatValidation(err)))
			continue
		}
		desc.Entries[name] = &e
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return desc, nil
}

// Wire description top-level keys of the grouped form.
const (
	keyCommands       = "commands"
	keyReturnCommands = "return commands"
	keySpecialItems   = "special items"
)

// ParamClientSideCommands holds the client side command list. It is spelled
// "_client side commands" in flat descriptions and
// "special items.client_side_commands" in grouped ones.
const ParamClientSideCommands = "client side commands"

type wireEntry struct {
	Category string   `json:"category" validate:"required,oneof=command 'return command'"`
	Members  []Member `json:"members" validate:"dive"`
}

// ParseWire decodes a wire description. Two shapes are accepted: flat entries
// of {category, members}, and the grouped form with "commands" and
// "return commands" maps of name to member list.
func ParseWire(data []byte, format Format) (*WireDescription, error) {
	data, err := toJSON(data, format)
	if err != nil {
		return nil, ir.Errorf(ir.PhaseParse, "", "%w: %v", ir.ErrInvalidDescription, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ir.Errorf(ir.PhaseParse, "", "%w: %v", ir.ErrInvalidDescription, err)
	}

	desc := &WireDescription{Params: make(map[string]any)}
	var errs *multierror.Error
	if isGrouped(raw) {
		errs = parseGrouped(raw, desc)
	} else {
		errs = parseFlat(raw, desc)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	if v, ok := desc.Params[ParamClientSideCommands]; ok {
		names, err := stringList(v)
		if err != nil {
			return nil, ir.Errorf(ir.PhaseParse, "_"+ParamClientSideCommands, "%w: %v", ir.ErrInvalidDescription, err)
		}
		desc.ClientSideCommands = names
	}
	sort.Slice(desc.Commands, func(i, j int) bool {
		return ir.CanonicalKey(desc.Commands[i].Name) < ir.CanonicalKey(desc.Commands[j].Name)
	})
	return desc, nil
}

func isGrouped(raw map[string]json.RawMessage) bool {
	_, c := raw[keyCommands]
	_, r := raw[keyReturnCommands]
	return c || r
}

func parseFlat(raw map[string]json.RawMessage, desc *WireDescription) *multierror.Error {
	var errs *multierror.Error
	for _, name := range sortedKeys(raw) {
		if strings.HasPrefix(name, "_") {
			var v any
			if err := json.Unmarshal(raw[name], &v); err != nil {
				errs = multierror.Append(errs, ir.Errorf(ir.PhaseParse, name, "%w: %v", ir.ErrInvalidDescription, err))
				continue
			}
			desc.Params[ir.CanonicalKey(strings.TrimPrefix(name, "_"))] = v
			continue
		}
		var e wireEntry
		if err := json.Unmarshal(raw[name], &e); err != nil {
			errs = multierror.Append(errs, ir.Errorf(ir.PhaseParse, name, "%w: %v", ir.ErrInvalidDescription, err))
			continue
		}
		if err := validate.Struct(&e); err != nil {
			errs = multierror.Append(errs, ir.Errorf(ir.PhaseParse, name, "%w: %s", ir.ErrInvalidDescription, formatValidation(err)))
			continue
		}
		category, _ := ir.ParseCategory(e.Category)
		desc.Commands = append(desc.Commands, WireCommand{Name: name, Category: category, Members: e.Members})
	}
	return errs
}

func parseGrouped(raw map[string]json.RawMessage, desc *WireDescription) *multierror.Error {
	var errs *multierror.Error
	groups := []struct {
		key      string
		category ir.Category
	}{
		{keyCommands, ir.CategoryCommand},
		{keyReturnCommands, ir.CategoryReturnCommand},
	}
	for _, g := range groups {
		data, ok := raw[g.key]
		if !ok {
			continue
		}
		var cmds map[string][]Member
		if err := json.Unmarshal(data, &cmds); err != nil {
			errs = multierror.Append(errs, ir.Errorf(ir.PhaseParse, g.key, "%w: %v", ir.ErrInvalidDescription, err))
			continue
		}
		for _, name := range sortedKeys(cmds) {
			failed := false
			for i := range cmds[name] {
				if err := validate.Struct(&cmds[name][i]); err != nil {
					errs = multierror.Append(errs, ir.Errorf(ir.PhaseParse, name, "%w: %s", ir.ErrInvalidDescription, formatValidation(err)))
					failed = true
				}
			}
			if !failed {
				desc.Commands = append(desc.Commands, WireCommand{Name: name, Category: g.category, Members: cmds[name]})
			}
		}
	}

	if data, ok := raw[keySpecialItems]; ok {
		var special map[string]any
		if err := json.Unmarshal(data, &special); err != nil {
			errs = multierror.Append(errs, ir.Errorf(ir.PhaseParse, keySpecialItems, "%w: %v", ir.ErrInvalidDescription, err))
		}
		for k, v := range special {
			key := ir.CanonicalKey(strings.ReplaceAll(k, "_", " "))
			desc.Params[key] = v
		}
	}
	for _, name := range sortedKeys(raw) {
		if !strings.HasPrefix(name, "_") {
			continue
		}
		var v any
		if err := json.Unmarshal(raw[name], &v); err == nil {
			desc.Params[ir.CanonicalKey(strings.TrimPrefix(name, "_"))] = v
		}
	}
	return errs
}

func stringList(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatValidation flattens validator errors into "field: problem" pairs.
func formatValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "required"
		case "oneof":
			msg = fmt.Sprintf("must be one of: %s", fe.Param())
		default:
			msg = fmt.Sprintf("failed %s validation", fe.Tag())
		}
		messages = append(messages, fe.Namespace()+": "+msg)
	}
	return strings.Join(messages, "; ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
