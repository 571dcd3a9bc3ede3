package marker

import (
	"bytes"
	"go/ast"
	"slices"
	"strconv"
	"strings"

	perrors "github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/born-ml/gpgpu/internal/kernel"
)

// Options configures an expansion.
type Options struct {
	Target Target
	Emit   kernel.EmitOptions
}

// Fragment is one emitted top-level declaration.
type Fragment struct {
	Kind   Kind
	Name   string
	Source []byte
}

// Report summarizes what an expansion produced.
type Report struct {
	Kernels  []string // kernels emitted for this build
	Mirrors  []string // host mirrors, host build only
	Entries  []string // wrapped startup functions, host build only
	HostOnly []string // host-only declarations kept
	Omitted  []string // declarations dropped from this build
}

// Expansion is the result of expanding one file.
type Expansion struct {
	Fragments []Fragment
	Pairs     []*kernel.ArtifactPair
	Report    Report
}

// Expand walks the top-level declarations of src and emits them for
// opts.Target. Every marker error in the file is reported; when there is any,
// no expansion is returned.
func Expand(src *kernel.Source, opts Options) (*Expansion, error) {
	if opts.Emit.RuntimeVar == "" {
		opts.Emit.RuntimeVar = kernel.DefaultRuntimeVar
	}
	exp := &Expansion{}
	var errs error
	for _, decl := range src.File.Decls {
		if err := exp.expandDecl(src, decl, opts); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return nil, errs
	}
	return exp, nil
}

func (exp *Expansion) expandDecl(src *kernel.Source, decl ast.Decl, opts Options) error {
	name := declName(decl)
	doc := declDoc(decl)
	m, err := Parse(doc)
	if err != nil {
		return locate(src, decl, name, err)
	}
	host := opts.Target == HostBuild

	switch m.Kind {
	case None, Compute:
		exp.add(m.Kind, name, verbatim(src, decl, doc))

	case HostOnly:
		if !host {
			exp.Report.Omitted = append(exp.Report.Omitted, name)
			return nil
		}
		exp.Report.HostOnly = append(exp.Report.HostOnly, name)
		exp.add(HostOnly, name, verbatim(src, decl, doc))

	case Entry:
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv != nil || fd.Body == nil {
			return locate(src, decl, name, perrors.Wrap(ErrMisplacedMarker, "entry must decorate a function with a body"))
		}
		if !host {
			exp.Report.Omitted = append(exp.Report.Omitted, name)
			return nil
		}
		exp.Report.Entries = append(exp.Report.Entries, name)
		exp.add(Entry, name, wrapEntry(src, fd, opts.Emit.RuntimeVar))

	case Kernel:
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			return locate(src, decl, name, perrors.Wrap(ErrMisplacedMarker, "kernel must decorate a function"))
		}
		sig, err := kernel.Analyze(src, fd, m.Async)
		if err != nil {
			return err
		}
		pair, err := kernel.Emit(sig, opts.Emit)
		if err != nil {
			return err
		}
		exp.Pairs = append(exp.Pairs, pair)
		exp.Report.Kernels = append(exp.Report.Kernels, name)
		prose := docText(fd.Doc)
		if !host {
			if len(prose) > 0 {
				// Keep the compute directive in its own paragraph.
				prose = append(prose, "//\n"...)
			}
			exp.add(Kernel, name, append(prose, pair.Device...))
			return nil
		}
		exp.Report.Mirrors = append(exp.Report.Mirrors, pair.MirrorName)
		exp.add(Kernel, name, append(slices.Clip(prose), pair.Stub...))
		exp.add(Kernel, pair.MirrorName, append(slices.Clip(prose), pair.Mirror...))
	}
	return nil
}

func (exp *Expansion) add(kind Kind, name string, source []byte) {
	exp.Fragments = append(exp.Fragments, Fragment{Kind: kind, Name: name, Source: source})
}

// verbatim returns the declaration text with authored directives removed from
// its doc comment.
func verbatim(src *kernel.Source, decl ast.Decl, doc *ast.CommentGroup) []byte {
	out := docText(doc)
	return append(out, src.Slice(decl.Pos(), decl.End())...)
}

// wrapEntry injects the one-time runtime initialization as the first
// statement of fd. The deferred Release tears the device down when fd
// returns.
func wrapEntry(src *kernel.Source, fd *ast.FuncDecl, runtimeVar string) []byte {
	start, end := src.Offset(fd.Pos()), src.Offset(fd.End())
	at := src.Offset(fd.Body.Lbrace) + 1

	out := docText(fd.Doc)
	out = append(out, src.Content[start:at]...)
	out = append(out, "\n\tdefer "+runtimeVar+".MustInit().Release()"...)
	return append(out, src.Content[at:end]...)
}

// docText renders a doc comment without entry, host and kernel directives.
func docText(doc *ast.CommentGroup) []byte {
	if doc == nil {
		return nil
	}
	var lines []string
	for _, c := range doc.List {
		if IsDirective(c) && !strings.HasPrefix(strings.TrimSpace(c.Text), Prefix+"compute") {
			continue
		}
		lines = append(lines, c.Text)
	}
	// The blank comment line separating prose from a removed directive.
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "//" {
		lines = lines[:len(lines)-1]
	}
	var b bytes.Buffer
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func declDoc(decl ast.Decl) *ast.CommentGroup {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return d.Doc
	case *ast.GenDecl:
		return d.Doc
	}
	return nil
}

// declName names a declaration for reports and errors.
func declName(decl ast.Decl) string {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return d.Name.Name
	case *ast.GenDecl:
		var names []string
		for _, spec := range d.Specs {
			switch s := spec.(type) {
			case *ast.ImportSpec:
				p, _ := strconv.Unquote(s.Path.Value)
				names = append(names, p)
			case *ast.ValueSpec:
				for _, n := range s.Names {
					names = append(names, n.Name)
				}
			case *ast.TypeSpec:
				names = append(names, s.Name.Name)
			}
		}
		return d.Tok.String() + " " + strings.Join(names, ", ")
	}
	return "?"
}

func locate(src *kernel.Source, decl ast.Decl, name string, err error) error {
	pos := decl.Pos()
	if fd, ok := decl.(*ast.FuncDecl); ok {
		pos = fd.Name.Pos()
	}
	return &kernel.Error{Pos: src.Position(pos), Func: name, Err: err}
}
