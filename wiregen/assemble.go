package wiregen

import (
	"sort"

	"github.com/broady/dawnwire/wiregen/ir"
	"github.com/broady/dawnwire/wiregen/load"
)

// Assemble freezes the synthesized commands into a Schema. Each bucket gets
// its metadata recomputed and is sorted by canonical name; the sorted index
// of a command is its wire id.
func Assemble(linked *load.Linked, syn *Synthesized) (*ir.Schema, error) {
	commands := append([]*ir.CommandType(nil), syn.Commands...)
	returns := append([]*ir.CommandType(nil), syn.ReturnCommands...)

	for _, bucket := range [][]*ir.CommandType{commands, returns} {
		for _, cmd := range bucket {
			cmd.UpdateMetadata()
		}
		sortCommands(bucket)
		for i := 1; i < len(bucket); i++ {
			if bucket[i-1].Name.Canonical() == bucket[i].Name.Canonical() {
				return nil, ir.Errorf(ir.PhaseAssemble, bucket[i].Name.Canonical(), "%w: declared twice", ir.ErrNameCollision)
			}
		}
	}

	info, err := NewAnalyzer().Analyze(linked.Structures, commands, returns)
	if err != nil {
		return nil, err
	}

	extra := make([]ir.TypeDescriptor, 0, len(commands)+len(returns))
	for _, cmd := range commands {
		extra = append(extra, cmd)
	}
	for _, cmd := range returns {
		extra = append(extra, cmd)
	}
	types, err := linked.Types.Extend(extra...)
	if err != nil {
		return nil, err
	}

	schema := &ir.Schema{
		Types:             types,
		Commands:          commands,
		ReturnCommands:    returns,
		Structures:        linked.Structures,
		SerializationInfo: info,
		Params:            linked.Params,
	}
	for _, w := range syn.Warnings {
		schema.AddWarning(w)
	}
	return schema, nil
}

func sortCommands(cmds []*ir.CommandType) {
	sort.SliceStable(cmds, func(i, j int) bool {
		return cmds[i].Name.Canonical() < cmds[j].Name.Canonical()
	})
}
