// Package diff implements "dawnwire diff".
package diff

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wI2L/jsondiff"
)

// ErrDifferent is returned with --exit-code when the documents differ.
var ErrDifferent = errors.New("schemas differ")

type Cmd struct {
	Old      string `arg:"" help:"Old schema dump." type:"existingfile"`
	New      string `arg:"" help:"New schema dump." type:"existingfile"`
	ExitCode bool   `help:"Fail when the schemas differ." name:"exit-code"`
}

func (c *Cmd) Run() error {
	oldData, err := os.ReadFile(c.Old)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.Old, err)
	}
	newData, err := os.ReadFile(c.New)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.New, err)
	}
	n, err := Print(os.Stdout, oldData, newData)
	if err != nil {
		return err
	}
	if n > 0 && c.ExitCode {
		return ErrDifferent
	}
	return nil
}

// Print writes the JSON patch turning oldData into newData, grouped by
// operation type, and returns the number of operations.
func Print(w io.Writer, oldData, newData []byte) (int, error) {
	patch, err := jsondiff.CompareJSON(oldData, newData)
	if err != nil {
		return 0, fmt.Errorf("compare: %w", err)
	}
	if len(patch) == 0 {
		fmt.Fprintln(w, "No differences.")
		return 0, nil
	}

	groups := map[string]*bytes.Buffer{}
	var order []string
	for _, op := range patch {
		buf, ok := groups[op.Type]
		if !ok {
			buf = &bytes.Buffer{}
			groups[op.Type] = buf
			order = append(order, op.Type)
		}
		fmt.Fprintf(buf, "  %v\n", op)
	}
	for _, typ := range order {
		fmt.Fprintf(w, "%s:\n", label(typ))
		if _, err := groups[typ].WriteTo(w); err != nil {
			return 0, err
		}
	}
	return len(patch), nil
}

func label(typ string) string {
	switch typ {
	case jsondiff.OperationAdd:
		return "Added"
	case jsondiff.OperationRemove:
		return "Removed"
	case jsondiff.OperationReplace:
		return "Replaced"
	case jsondiff.OperationMove:
		return "Moved"
	case jsondiff.OperationCopy:
		return "Copied"
	}
	return typ
}
