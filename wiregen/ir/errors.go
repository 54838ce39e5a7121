package ir

import (
	"errors"
	"fmt"
)

// Sentinel causes for fatal schema errors. Match with errors.Is.
var (
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidDescription = errors.New("invalid description")
	ErrUnresolvedType     = errors.New("unresolved type reference")
	ErrNameCollision      = errors.New("name collision")
	ErrCyclicStructure    = errors.New("cyclic structure")
	ErrInvalidMember      = errors.New("invalid member")
	ErrMissingBuiltType   = errors.New("builder has no built type")
)

// Phase identifies the generation phase that raised a SchemaError.
type Phase string

const (
	PhaseParse      Phase = "parse"
	PhaseLink       Phase = "link"
	PhaseSynthesize Phase = "synthesize"
	PhaseAnalyze    Phase = "analyze"
	PhaseAssemble   Phase = "assemble"
)

// SchemaError is a fatal error that aborts the whole generation pass.
// Entity is the canonical name of the offending schema entry.
type SchemaError struct {
	Phase  Phase
	Entity string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s: %q: %v", e.Phase, e.Entity, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Errorf builds a SchemaError whose cause is formatted with fmt.Errorf, so a
// %w verb in format keeps the sentinel reachable.
func Errorf(phase Phase, entity string, format string, args ...any) *SchemaError {
	return &SchemaError{Phase: phase, Entity: entity, Err: fmt.Errorf(format, args...)}
}

// ValidationError represents a structural problem found by Schema.Validate.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
