package wiregen

import (
	"strings"

	"github.com/broady/dawnwire/wiregen/ir"
)

// Analyzer decides whether (de)serializing a structure or command needs an
// object id resolver. A record needs one when a member refers to an object
// without the handle annotation, or holds a structure that needs one.
//
// Results are memoized by canonical name; the type graph must not change
// while an Analyzer is in use.
type Analyzer struct {
	memo     map[string]bool
	visiting map[string]bool
	stack    []string
}

// NewAnalyzer returns an empty analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		memo:     make(map[string]bool),
		visiting: make(map[string]bool),
	}
}

// HasDawnObject evaluates the containment predicate for a structure or
// command. A structure reached again while it is being analyzed is an
// ErrCyclicStructure.
func (a *Analyzer) HasDawnObject(t ir.TypeDescriptor) (bool, error) {
	key := t.TypeName().Canonical()
	if v, ok := a.memo[key]; ok {
		return v, nil
	}
	if a.visiting[key] {
		path := strings.Join(append(a.stack, key), " -> ")
		return false, ir.Errorf(ir.PhaseAnalyze, key, "%w: %s", ir.ErrCyclicStructure, path)
	}
	a.visiting[key] = true
	a.stack = append(a.stack, key)
	defer func() {
		delete(a.visiting, key)
		a.stack = a.stack[:len(a.stack)-1]
	}()

	result := false
	for _, m := range ir.Members(t) {
		has, err := a.memberHasDawnObject(m)
		if err != nil {
			return false, err
		}
		if has {
			result = true
			break
		}
	}
	a.memo[key] = result
	return result, nil
}

func (a *Analyzer) memberHasDawnObject(m *ir.RecordMember) (bool, error) {
	switch m.Type.Category() {
	case ir.CategoryObject:
		return m.Annotation != ir.AnnotationHandle, nil
	case ir.CategoryStructure:
		return a.HasDawnObject(m.Type)
	}
	return false, nil
}

// Analyze computes serialization info for every structure and command.
func (a *Analyzer) Analyze(structs []*ir.StructureType, commands ...[]*ir.CommandType) (map[string]ir.SerializationInfo, error) {
	info := make(map[string]ir.SerializationInfo)
	for _, st := range structs {
		has, err := a.HasDawnObject(st)
		if err != nil {
			return nil, err
		}
		info[st.Name.Canonical()] = ir.SerializationInfo{HasDawnObject: has}
	}
	for _, bucket := range commands {
		for _, cmd := range bucket {
			has, err := a.HasDawnObject(cmd)
			if err != nil {
				return nil, err
			}
			info[cmd.Name.Canonical()] = ir.SerializationInfo{HasDawnObject: has}
		}
	}
	return info, nil
}
