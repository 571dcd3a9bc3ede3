package codegen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"runtime"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/gpgpu/internal/marker"
)

// File is one authored source file of a package.
type File struct {
	Name   string
	Source []byte
}

// GeneratePackage generates every file of one package. In a host build the
// runtime handle is declared once: in the file holding the entry function,
// otherwise in the first file holding a kernel. Results keep the order of
// files; all errors of all files are returned together.
func GeneratePackage(files []File, opts Options) ([]*Result, error) {
	holder, err := runtimeHolder(files)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(files))
	errs := make([]error, len(files))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		fileOpts := opts
		fileOpts.OmitRuntime = i != holder
		g.Go(func() error {
			results[i], errs[i] = Generate(f.Name, f.Source, fileOpts)
			return nil
		})
	}
	_ = g.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

// runtimeHolder picks the index of the file declaring the runtime handle, or
// -1 when no file needs it.
func runtimeHolder(files []File) (int, error) {
	firstKernel := -1
	for i, f := range files {
		entry, kernels, err := scanMarkers(f)
		if err != nil {
			return -1, err
		}
		if entry {
			return i, nil
		}
		if kernels && firstKernel < 0 {
			firstKernel = i
		}
	}
	return firstKernel, nil
}

// scanMarkers reports whether a file declares an entry function or kernels.
// Malformed markers are left for Generate to report with full context.
func scanMarkers(f File) (entry, kernels bool, err error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, f.Name, f.Source, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return false, false, errors.Wrapf(err, "parsing %s", f.Name)
	}
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		m, err := marker.Parse(fd.Doc)
		if err != nil {
			continue
		}
		switch m.Kind {
		case marker.Entry:
			entry = true
		case marker.Kernel:
			kernels = true
		}
	}
	return entry, kernels, nil
}
