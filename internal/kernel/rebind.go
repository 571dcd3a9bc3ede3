package kernel

import (
	"go/ast"

	"github.com/pkg/errors"
)

// OutputName is the reserved identifier of the synthesized output binding.
const OutputName = "output"

// Direction of a binding as seen by the device.
type Direction int

// Binding directions.
const (
	Input Direction = iota
	Output
)

// String returns the storage wrapper name of the direction.
func (d Direction) String() string {
	if d == Output {
		return "Output"
	}
	return "Input"
}

// Binding is one device storage binding of a rebound kernel.
type Binding struct {
	Direction Direction
	Name      string
	Type      ast.Expr // underlying value type
}

// DeviceEntry is a kernel rebound to the device calling convention.
type DeviceEntry struct {
	Name     string
	Bindings []Binding

	sig    *Signature
	result *ast.ReturnStmt // terminal return rewritten into the output binding
}

// InputBindings rebinds every parameter to an input binding, preserving
// names and order.
func (s *Signature) InputBindings() []Binding {
	bindings := make([]Binding, 0, len(s.Params)+1)
	for _, p := range s.Params {
		bindings = append(bindings, Binding{Direction: Input, Name: p.Name, Type: p.Type})
	}
	return bindings
}

// Rebind produces the device entry: inputs for every parameter plus, when a
// return type is declared, a trailing output binding fed by the terminal
// return statement. The async qualifier does not survive rebinding.
func (s *Signature) Rebind() (*DeviceEntry, error) {
	entry := &DeviceEntry{
		Name:     s.Name,
		Bindings: s.InputBindings(),
		sig:      s,
	}
	if !s.HasResult() {
		return entry, nil
	}

	for _, p := range s.Params {
		if p.Name == OutputName {
			return nil, s.errorAt(p.Type, errors.Wrapf(ErrBindingNameCollision, "parameter %q is reserved for the output binding", OutputName))
		}
	}
	ret, err := s.terminalReturn()
	if err != nil {
		return nil, err
	}
	entry.result = ret
	entry.Bindings = append(entry.Bindings, Binding{Direction: Output, Name: OutputName, Type: s.Result})
	return entry, nil
}

// terminalReturn finds the single `return <expr>` placed as the last statement
// of the body, or a bare `return` when the result is named. Returns nested in further control structures are not rewritten
// and therefore rejected.
func (s *Signature) terminalReturn() (*ast.ReturnStmt, error) {
	var (
		found  *ast.ReturnStmt
		nested *ast.ReturnStmt
	)
	for i, stmt := range s.Body.List {
		if ret, ok := stmt.(*ast.ReturnStmt); ok {
			if found != nil {
				return nil, s.errorAt(ret, errors.Wrap(ErrUnsupportedReturn, "more than one return statement"))
			}
			if i != len(s.Body.List)-1 {
				return nil, s.errorAt(ret, errors.Wrap(ErrUnsupportedReturn, "return must be the last statement"))
			}
			found = ret
			continue
		}
		if nested == nil {
			nested = findNestedReturn(stmt)
		}
	}
	if nested != nil {
		return nil, s.errorAt(nested, errors.Wrap(ErrUnsupportedReturn, "return nested in control flow"))
	}
	if found == nil {
		return nil, s.errorAt(s.Body, errors.Wrapf(ErrMissingReturnStatement, "result %s is never returned", s.Src.Text(s.Result)))
	}
	if len(found.Results) == 0 && s.ResultName != "" {
		return found, nil
	}
	if len(found.Results) != 1 {
		return nil, s.errorAt(found, errors.Wrap(ErrMissingReturnStatement, "return has no expression"))
	}
	return found, nil
}

// findNestedReturn returns the first return statement inside stmt, ignoring
// function literals which have their own returns.
func findNestedReturn(stmt ast.Stmt) *ast.ReturnStmt {
	var ret *ast.ReturnStmt
	ast.Inspect(stmt, func(n ast.Node) bool {
		if ret != nil {
			return false
		}
		switch n := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.ReturnStmt:
			ret = n
			return false
		}
		return true
	})
	return ret
}

func (s *Signature) errorAt(node ast.Node, err error) error {
	return &Error{Pos: s.Src.Position(node.Pos()), Func: s.Name, Err: err}
}
