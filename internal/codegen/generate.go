// Package codegen turns authored Go files into host-build or device-build Go
// files by running the marker expansion and assembling, import-fixing and
// formatting the result.
package codegen

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/born-ml/gpgpu/internal/kernel"
	"github.com/born-ml/gpgpu/internal/marker"
)

// Header marks every generated file.
const Header = "// Code generated by gpgpu. DO NOT EDIT."

// Options configures generation.
type Options struct {
	Target marker.Target

	// ImportPath of the runtime package; defaults to kernel.DefaultImportPath.
	ImportPath string
	// RuntimeVar names the runtime handle; defaults to kernel.DefaultRuntimeVar.
	RuntimeVar string
	// MirrorDispatch makes host mirrors dispatch their device entry first.
	MirrorDispatch bool
	// OmitRuntime suppresses the runtime handle declaration a host build
	// with kernels or an entry function otherwise carries. GeneratePackage
	// sets it on every file but one.
	OmitRuntime bool
}

func (o Options) withDefaults() Options {
	if o.ImportPath == "" {
		o.ImportPath = kernel.DefaultImportPath
	}
	if o.RuntimeVar == "" {
		o.RuntimeVar = kernel.DefaultRuntimeVar
	}
	return o
}

// Result is one generated file.
type Result struct {
	Filename string
	Source   []byte
	Report   marker.Report
}

// Generate expands the authored file src for opts.Target. On any
// transformation error it returns the errors and no source.
func Generate(filename string, src []byte, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", filename)
	}
	source := kernel.NewSource(fset, file, src)

	qualifier := source.Qualifier(opts.ImportPath)
	if qualifier == "" {
		qualifier = path.Base(opts.ImportPath)
	}
	exp, err := marker.Expand(source, marker.Options{
		Target: opts.Target,
		Emit: kernel.EmitOptions{
			Qualifier:      qualifier,
			RuntimeVar:     opts.RuntimeVar,
			MirrorDispatch: opts.MirrorDispatch,
		},
	})
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.WriteString(Header + "\n\n")
	b.WriteString("package " + file.Name.Name + "\n")
	for _, frag := range exp.Fragments {
		b.WriteString("\n")
		b.Write(frag.Source)
		b.WriteString("\n")
	}
	uses := len(exp.Report.Kernels) > 0 || len(exp.Report.Entries) > 0
	declare := opts.Target == marker.HostBuild && uses && !opts.OmitRuntime
	if declare {
		b.WriteString("\n// " + opts.RuntimeVar + " dispatches the kernels of this package.\n")
		b.WriteString("var " + opts.RuntimeVar + " = " + qualifier + ".NewRuntime()\n")
	}

	out, err := finish(filename, b.Bytes(), source, opts.ImportPath, qualifier, declare || len(exp.Report.Kernels) > 0)
	if err != nil {
		return nil, err
	}
	Logger().Debug("generated file",
		zap.String("file", filename),
		zap.Stringer("target", opts.Target),
		zap.Strings("kernels", exp.Report.Kernels),
		zap.Strings("omitted", exp.Report.Omitted))
	return &Result{Filename: filename, Source: out, Report: exp.Report}, nil
}

// finish re-parses the assembled file, adds the runtime import when needed,
// prunes imports whose only users were omitted and formats the result.
func finish(filename string, assembled []byte, original *kernel.Source, importPath, qualifier string, needsRuntime bool) ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, assembled, parser.ParseComments)
	if err != nil {
		return nil, errors.Wrapf(err, "generated source for %s does not parse", filename)
	}

	if needsRuntime {
		name := ""
		if qualifier != path.Base(importPath) {
			name = qualifier
		}
		astutil.AddNamedImport(fset, file, name, importPath)
	}
	var unused []*ast.ImportSpec
	for _, spec := range file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil || astutil.UsesImport(file, p) {
			continue
		}
		if p == importPath || astutil.UsesImport(original.File, p) {
			unused = append(unused, spec)
		}
	}
	for _, spec := range unused {
		p, _ := strconv.Unquote(spec.Path.Value)
		astutil.DeleteNamedImport(fset, file, importName(spec), p)
	}
	ast.SortImports(fset, file)

	var out bytes.Buffer
	if err := format.Node(&out, fset, file); err != nil {
		return nil, errors.Wrapf(err, "formatting generated source for %s", filename)
	}
	return out.Bytes(), nil
}

func importName(spec *ast.ImportSpec) string {
	if spec.Name == nil {
		return ""
	}
	return spec.Name.Name
}
