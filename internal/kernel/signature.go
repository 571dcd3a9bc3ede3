package kernel

import (
	"go/ast"
	"go/token"
	"strings"

	"github.com/pkg/errors"
)

// ComputeDirective tags a declaration that already is a device entry point.
const ComputeDirective = "//gpgpu:compute"

// Param is one named parameter of a kernel.
type Param struct {
	Name string
	Type ast.Expr
}

// Signature is the structured form of a kernel function declaration.
type Signature struct {
	Name   string
	Params []Param
	Result ast.Expr // nil when the function returns nothing
	// ResultName is the name of a named result, "" otherwise.
	ResultName string
	Body   *ast.BlockStmt
	Async  bool

	Decl *ast.FuncDecl
	Src  *Source

	// qualifier is the local name of the runtime package in Src, "" if absent.
	qualifier string
}

// Analyze parses a function declaration into a Signature. Parameters that
// cannot be bound (unnamed, blank or variadic) fail the analysis instead of
// being skipped.
func Analyze(src *Source, decl *ast.FuncDecl, async bool) (*Signature, error) {
	sig := &Signature{
		Name:      decl.Name.Name,
		Async:     async,
		Decl:      decl,
		Src:       src,
		Body:      decl.Body,
		qualifier: src.Qualifier(DefaultImportPath),
	}
	fail := func(pos token.Pos, err error) (*Signature, error) {
		return nil, &Error{Pos: src.Position(pos), Func: sig.Name, Err: err}
	}

	if hasComputeDirective(decl.Doc) {
		return fail(decl.Pos(), errors.Wrap(ErrAlreadyRebound, "declaration carries "+ComputeDirective))
	}
	if decl.Recv != nil {
		return fail(decl.Recv.Pos(), errors.Wrap(ErrMalformedSignature, "methods cannot be kernels"))
	}
	if decl.Type.TypeParams != nil && len(decl.Type.TypeParams.List) > 0 {
		return fail(decl.Type.TypeParams.Pos(), errors.Wrap(ErrMalformedSignature, "type parameters are not supported"))
	}
	if decl.Body == nil {
		return fail(decl.Pos(), errors.Wrap(ErrMalformedSignature, "kernel has no body"))
	}

	index := 0
	for _, field := range decl.Type.Params.List {
		if len(field.Names) == 0 {
			return fail(field.Pos(), errors.Wrapf(ErrMalformedSignature, "parameter %d has no name", index))
		}
		if _, ok := field.Type.(*ast.Ellipsis); ok {
			return fail(field.Type.Pos(), errors.Wrap(ErrMalformedSignature, "variadic parameters are not supported"))
		}
		if sig.isStorageType(field.Type) {
			return fail(field.Type.Pos(), errors.Wrapf(ErrAlreadyRebound, "parameter type %s", src.Text(field.Type)))
		}
		if bad := unsized(field.Type); bad != nil {
			return fail(bad.Pos(), errors.Wrapf(ErrMalformedSignature, "parameter type %s has no fixed size", src.Text(field.Type)))
		}
		for _, name := range field.Names {
			if name.Name == "_" {
				return fail(name.Pos(), errors.Wrapf(ErrMalformedSignature, "parameter %d is blank", index))
			}
			sig.Params = append(sig.Params, Param{Name: name.Name, Type: field.Type})
			index++
		}
	}

	if results := decl.Type.Results; results != nil && len(results.List) > 0 {
		if len(results.List) > 1 || len(results.List[0].Names) > 1 {
			return fail(results.Pos(), errors.Wrap(ErrMalformedSignature, "at most one result is supported"))
		}
		result := results.List[0]
		if bad := unsized(result.Type); bad != nil {
			return fail(bad.Pos(), errors.Wrapf(ErrMalformedSignature, "result type %s has no fixed size", src.Text(result.Type)))
		}
		if len(result.Names) == 1 {
			if result.Names[0].Name == "_" {
				return fail(result.Names[0].Pos(), errors.Wrap(ErrMalformedSignature, "result is blank"))
			}
			sig.ResultName = result.Names[0].Name
		}
		sig.Result = result.Type
	}
	return sig, nil
}

// HasResult reports whether the kernel declares a return type.
func (s *Signature) HasResult() bool {
	return s.Result != nil
}

// Qualifier returns the name used to reference the runtime package from the
// kernel's file.
func (s *Signature) Qualifier() string {
	if s.qualifier != "" {
		return s.qualifier
	}
	return "gpgpu"
}

// isStorageType reports whether expr is Input[T] or Output[T] of the runtime
// package, i.e. the declaration was produced by a previous rebinding.
func (s *Signature) isStorageType(expr ast.Expr) bool {
	if s.qualifier == "" {
		return false
	}
	idx, ok := expr.(*ast.IndexExpr)
	if !ok {
		return false
	}
	sel, ok := idx.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != s.qualifier {
		return false
	}
	return sel.Sel.Name == "Input" || sel.Sel.Name == "Output"
}

// unsizedIdents are the predeclared types binary encoding cannot size.
var unsizedIdents = map[string]bool{
	"int":     true,
	"uint":    true,
	"uintptr": true,
	"string":  true,
	"any":     true,
	"error":   true,
}

// unsized returns the part of a type expression that has no fixed-size
// encoding, or nil. Named types declared elsewhere cannot be resolved
// syntactically and are accepted.
func unsized(expr ast.Expr) ast.Node {
	switch t := expr.(type) {
	case *ast.Ident:
		if unsizedIdents[t.Name] {
			return t
		}
	case *ast.ParenExpr:
		return unsized(t.X)
	case *ast.StarExpr:
		return unsized(t.X)
	case *ast.ArrayType:
		return unsized(t.Elt)
	case *ast.StructType:
		for _, field := range t.Fields.List {
			if bad := unsized(field.Type); bad != nil {
				return bad
			}
		}
	case *ast.MapType, *ast.ChanType, *ast.FuncType, *ast.InterfaceType:
		return t
	}
	return nil
}

func hasComputeDirective(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.TrimSpace(c.Text) == ComputeDirective {
			return true
		}
	}
	return false
}
