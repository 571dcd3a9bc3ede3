// Package kernel implements the dual-target transformation engine: it analyzes
// a kernel function declaration into a structured Signature, rebinds its
// parameters and result to device storage bindings and emits the device entry
// point together with its host-side counterparts.
//
// All rewrites are positional splices keyed by AST nodes of the parsed source,
// never substring searches, so identical text elsewhere in a declaration is
// left untouched.
package kernel

import (
	"go/ast"
	"go/token"
	"path"
	"strconv"
)

// DefaultImportPath is the import path of the runtime package referenced by
// generated code.
const DefaultImportPath = "github.com/born-ml/gpgpu"

// Source is a parsed Go file together with its raw content.
type Source struct {
	Fset    *token.FileSet
	File    *ast.File
	Content []byte
}

// NewSource wraps a file parsed from content with fset.
func NewSource(fset *token.FileSet, file *ast.File, content []byte) *Source {
	return &Source{Fset: fset, File: file, Content: content}
}

// Offset returns the byte offset of pos in the source content.
func (s *Source) Offset(pos token.Pos) int {
	return s.Fset.Position(pos).Offset
}

// Slice returns the raw source text between from and to.
func (s *Source) Slice(from, to token.Pos) []byte {
	return s.Content[s.Offset(from):s.Offset(to)]
}

// Text returns the raw source text of node.
func (s *Source) Text(node ast.Node) string {
	return string(s.Slice(node.Pos(), node.End()))
}

// Position resolves pos for error reporting.
func (s *Source) Position(pos token.Pos) token.Position {
	return s.Fset.Position(pos)
}

// Qualifier returns the local name under which importPath is imported by the
// file, or "" when the file does not import it.
func (s *Source) Qualifier(importPath string) string {
	for _, spec := range s.File.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil || p != importPath {
			continue
		}
		if spec.Name != nil {
			return spec.Name.Name
		}
		return path.Base(p)
	}
	return ""
}

// splice is a replacement of the byte range [from, to) with text.
type splice struct {
	from, to int
	text string
}

// render copies content[start:end] applying the splices, which must be sorted
// and fall inside the range.
func render(content []byte, start, end int, splices ...splice) []byte {
	out := make([]byte, 0, end-start+64)
	cur := start
	for _, sp := range splices {
		out = append(out, content[cur:sp.from]...)
		out = append(out, sp.text...)
		cur = sp.to
	}
	return append(out, content[cur:end]...)
}
