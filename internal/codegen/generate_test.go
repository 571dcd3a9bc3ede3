package codegen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/born-ml/gpgpu/internal/kernel"
	"github.com/born-ml/gpgpu/internal/marker"
)

const authored = `//go:build gpgpu_source

package main

import (
	"fmt"
	"strings"
)

func doStuff() float32 {
	return 0
}

// calculate runs on the device.
//
//gpgpu:kernel
func calculate(value float32) float32 {
	return doStuff()
}

//gpgpu:kernel async
func calculateAsync(value float32) {
	doStuff()
}

//gpgpu:host
func banner() string {
	return strings.Repeat("=", 8)
}

//gpgpu:entry
func main() {
	fmt.Println(banner())
	calculate(0)
	calculateAsync(0)
	fmt.Println(calculate__cpu(0))
}
`

// runtimeStub declares the parts of the runtime package generated code
// refers to.
const runtimeStub = `package gpgpu

type Input[T any] = T

type Output[T any] = *T

type Binding struct{}

func In[T any](v T) *Binding { return nil }

func Out[T any](p *T) *Binding { return nil }

type Runtime struct{}

func NewRuntime() *Runtime { return nil }

func (rt *Runtime) MustLaunch(name string, bindings ...*Binding) {}

func (rt *Runtime) MustInit() *Runtime { return rt }

func (rt *Runtime) Release() {}
`

// stubImporter resolves the runtime package to runtimeStub and everything
// else from source.
type stubImporter struct {
	fset     *token.FileSet
	fallback types.Importer
	runtime  *types.Package
}

func (imp *stubImporter) Import(path string) (*types.Package, error) {
	if path != kernel.DefaultImportPath {
		return imp.fallback.Import(path)
	}
	if imp.runtime != nil {
		return imp.runtime, nil
	}
	file, err := parser.ParseFile(imp.fset, "gpgpu.go", runtimeStub, 0)
	if err != nil {
		return nil, err
	}
	conf := types.Config{GoVersion: "go1.25"}
	imp.runtime, err = conf.Check(path, imp.fset, []*ast.File{file}, nil)
	return imp.runtime, err
}

// requireTypeChecks fails unless the generated files form a well-typed
// package.
func requireTypeChecks(t *testing.T, sources ...[]byte) {
	t.Helper()
	fset := token.NewFileSet()
	files := make([]*ast.File, len(sources))
	for i, src := range sources {
		file, err := parser.ParseFile(fset, fmt.Sprintf("out%d.go", i), src, parser.ParseComments)
		require.NoError(t, err, "generated source:\n%s", src)
		files[i] = file
	}
	conf := types.Config{
		GoVersion: "go1.25",
		Importer:  &stubImporter{fset: fset, fallback: importer.ForCompiler(fset, "source", nil)},
	}
	_, err := conf.Check(files[0].Name.Name, fset, files, nil)
	require.NoError(t, err, "generated sources:\n%s", bytes.Join(sources, []byte("\n----\n")))
}

func TestGenerate_HostBuild(t *testing.T) {
	res, err := Generate("calculate.go", []byte(authored), Options{Target: marker.HostBuild})
	require.NoError(t, err)
	out := string(res.Source)
	requireTypeChecks(t, res.Source)

	assert.True(t, strings.HasPrefix(out, Header+"\n"))
	assert.NotContains(t, out, "//go:build")
	assert.NotContains(t, out, "//gpgpu:")
	assert.Contains(t, out, "\"github.com/born-ml/gpgpu\"")
	assert.Contains(t, out, "\"fmt\"")
	assert.Contains(t, out, "\"strings\"")

	assert.Contains(t, out, "// calculate runs on the device.\nfunc calculate(value float32) float32 {\n"+
		"\tvar output float32\n"+
		"\tgpgpuRuntime.MustLaunch(\"calculate\", gpgpu.In(value), gpgpu.Out(&output))\n"+
		"\treturn output\n}")
	assert.Contains(t, out, "// calculate runs on the device.\nfunc calculate__cpu(value float32) float32 {\n\treturn doStuff()\n}")
	assert.Contains(t, out, "func calculateAsync(value float32) {\n\tgpgpuRuntime.MustLaunch(\"calculateAsync\", gpgpu.In(value))\n}")
	assert.Contains(t, out, "func calculateAsync__cpu(value float32) {\n\tdoStuff()\n}")
	assert.Contains(t, out, "func banner() string {")
	assert.Contains(t, out, "func main() {\n\tdefer gpgpuRuntime.MustInit().Release()\n\tfmt.Println(banner())")
	assert.Contains(t, out, "var gpgpuRuntime = gpgpu.NewRuntime()")

	assert.Equal(t, []string{"calculate", "calculateAsync"}, res.Report.Kernels)
	assert.Equal(t, []string{"main"}, res.Report.Entries)
}

func TestGenerate_DeviceBuild(t *testing.T) {
	res, err := Generate("calculate.go", []byte(authored), Options{Target: marker.DeviceBuild})
	require.NoError(t, err)
	out := string(res.Source)
	requireTypeChecks(t, res.Source)

	assert.Contains(t, out, "// calculate runs on the device.\n//\n//gpgpu:compute\nfunc calculate(value gpgpu.Input[float32], output gpgpu.Output[float32]) {\n\t*output = doStuff()\n}")
	assert.Contains(t, out, "//gpgpu:compute\nfunc calculateAsync(value gpgpu.Input[float32]) {\n\tdoStuff()\n}")
	assert.Contains(t, out, "func doStuff() float32")
	assert.Contains(t, out, "\"github.com/born-ml/gpgpu\"")

	assert.NotContains(t, out, "func main")
	assert.NotContains(t, out, "banner")
	assert.NotContains(t, out, "__cpu")
	assert.NotContains(t, out, "gpgpuRuntime")
	// Only the omitted declarations used these imports.
	assert.NotContains(t, out, "\"fmt\"")
	assert.NotContains(t, out, "\"strings\"")

	assert.ElementsMatch(t, []string{"banner", "main"}, res.Report.Omitted)
}

func TestGenerate_RenamedImport(t *testing.T) {
	src := "package k\n\nimport gp \"github.com/born-ml/gpgpu\"\n\nvar _ = gp.Input[float32](0)\n\n" +
		"//gpgpu:kernel\nfunc twice(x float32) float32 {\n\treturn 2 * x\n}\n"
	res, err := Generate("k.go", []byte(src), Options{Target: marker.DeviceBuild})
	require.NoError(t, err)
	out := string(res.Source)
	assert.Contains(t, out, "func twice(x gp.Input[float32], output gp.Output[float32])")
	assert.Contains(t, out, "gp \"github.com/born-ml/gpgpu\"")
}

func TestGenerate_MirrorDispatch(t *testing.T) {
	res, err := Generate("calculate.go", []byte(authored), Options{Target: marker.HostBuild, MirrorDispatch: true, OmitRuntime: true})
	require.NoError(t, err)
	assert.Contains(t, string(res.Source),
		"func calculate__cpu(value float32) float32 {\n\tgpgpuRuntime.MustLaunch(\"calculate\", gpgpu.In(value), gpgpu.Out(new(float32)))\n\treturn doStuff()\n}")
	assert.NotContains(t, string(res.Source), "var gpgpuRuntime")
}

func TestGenerate_SingleFileDeclaresRuntime(t *testing.T) {
	src := "package main\n\n//gpgpu:kernel\nfunc f(x float32) float32 {\n\treturn x + 1\n}\n\n" +
		"//gpgpu:entry\nfunc main() {\n\tf(1)\n}\n"
	res, err := Generate("k.go", []byte(src), Options{Target: marker.HostBuild})
	require.NoError(t, err)
	assert.Contains(t, string(res.Source), "var gpgpuRuntime = gpgpu.NewRuntime()")
	requireTypeChecks(t, res.Source)

	res, err = Generate("k.go", []byte(src), Options{Target: marker.HostBuild, OmitRuntime: true})
	require.NoError(t, err)
	assert.NotContains(t, string(res.Source), "var gpgpuRuntime")
}

func TestGenerate_NamedResult(t *testing.T) {
	src := "package k\n\n//gpgpu:kernel\nfunc f(x float32) (y float32) { y = x * 2; return y }\n\n" +
		"//gpgpu:kernel\nfunc g(x float32) (z float32) {\n\tz = x\n\treturn\n}\n"
	for _, target := range []marker.Target{marker.HostBuild, marker.DeviceBuild} {
		t.Run(target.String(), func(t *testing.T) {
			res, err := Generate("k.go", []byte(src), Options{Target: target})
			require.NoError(t, err)
			requireTypeChecks(t, res.Source)
		})
	}
}

func TestGenerate_UnsizedKernelType(t *testing.T) {
	src := "package k\n\n//gpgpu:kernel\nfunc f(n int) int {\n\treturn n\n}\n"
	_, err := Generate("k.go", []byte(src), Options{Target: marker.HostBuild})
	require.Error(t, err)
	assert.ErrorIs(t, err, kernel.ErrMalformedSignature)
	assert.Contains(t, err.Error(), "k.go:4:")
}

func TestGenerate_ErrorsEmitNothing(t *testing.T) {
	src := "package k\n\n//gpgpu:kernel\nfunc f(x float32) float32 {\n\tpanic(x)\n}\n\n" +
		"//gpgpu:kernel\nfunc g(output int32) int32 {\n\treturn output\n}\n"
	res, err := Generate("k.go", []byte(src), Options{Target: marker.DeviceBuild})
	require.Error(t, err)
	assert.Nil(t, res)

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], kernel.ErrMissingReturnStatement)
	assert.ErrorIs(t, errs[1], kernel.ErrBindingNameCollision)
	assert.Contains(t, errs[0].Error(), "k.go:4:")
}

func TestGenerate_ParseError(t *testing.T) {
	_, err := Generate("bad.go", []byte("package k\n\nfunc {"), Options{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing bad.go")
}

func TestGenerate_NoMarkers(t *testing.T) {
	src := "package k\n\nimport \"fmt\"\n\nfunc Hello() { fmt.Println(\"hi\") }\n"
	res, err := Generate("k.go", []byte(src), Options{Target: marker.DeviceBuild})
	require.NoError(t, err)
	assert.NotContains(t, string(res.Source), "gpgpu\"")
	assert.Contains(t, string(res.Source), "\"fmt\"")
	assert.Empty(t, res.Report.Kernels)
}

func TestGeneratePackage(t *testing.T) {
	kernels := File{Name: "kernels.go", Source: []byte("package main\n\n//gpgpu:kernel\nfunc k(x uint32) uint32 {\n\treturn x + 1\n}\n")}
	helpers := File{Name: "helpers.go", Source: []byte("package main\n\nfunc helper() {}\n")}
	entry := File{Name: "main.go", Source: []byte("package main\n\n//gpgpu:entry\nfunc main() {\n\tk(1)\n}\n")}

	t.Run("entry file holds the runtime", func(t *testing.T) {
		results, err := GeneratePackage([]File{kernels, helpers, entry}, Options{Target: marker.HostBuild})
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "kernels.go", results[0].Filename)
		assert.Equal(t, "main.go", results[2].Filename)
		assert.NotContains(t, string(results[0].Source), "var gpgpuRuntime")
		assert.NotContains(t, string(results[1].Source), "var gpgpuRuntime")
		assert.Contains(t, string(results[2].Source), "var gpgpuRuntime = gpgpu.NewRuntime()")
		assert.Contains(t, string(results[0].Source), "gpgpuRuntime.MustLaunch(\"k\", gpgpu.In(x), gpgpu.Out(&output))")
		requireTypeChecks(t, results[0].Source, results[1].Source, results[2].Source)
	})

	t.Run("first kernel file without an entry", func(t *testing.T) {
		results, err := GeneratePackage([]File{helpers, kernels}, Options{Target: marker.HostBuild})
		require.NoError(t, err)
		assert.NotContains(t, string(results[0].Source), "var gpgpuRuntime")
		assert.Contains(t, string(results[1].Source), "var gpgpuRuntime")
		requireTypeChecks(t, results[0].Source, results[1].Source)
	})

	t.Run("device build declares nothing", func(t *testing.T) {
		results, err := GeneratePackage([]File{kernels, entry}, Options{Target: marker.DeviceBuild})
		require.NoError(t, err)
		for _, r := range results {
			assert.NotContains(t, string(r.Source), "gpgpuRuntime")
		}
		assert.NotContains(t, string(results[1].Source), "func main")
		requireTypeChecks(t, results[0].Source, results[1].Source)
	})

	t.Run("errors from every file", func(t *testing.T) {
		bad1 := File{Name: "a.go", Source: []byte("package main\n\n//gpgpu:kernel\nfunc a() int32 {\n\tpanic(0)\n}\n")}
		bad2 := File{Name: "b.go", Source: []byte("package main\n\n//gpgpu:kernel\nfunc b(float32) {}\n")}
		_, err := GeneratePackage([]File{bad1, bad2}, Options{Target: marker.HostBuild})
		require.Error(t, err)
		errs := multierr.Errors(err)
		require.Len(t, errs, 2)
		assert.ErrorIs(t, errs[0], kernel.ErrMissingReturnStatement)
		assert.ErrorIs(t, errs[1], kernel.ErrMalformedSignature)
	})
}
