package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpgpu/backend/webgpu"
)

const kernels = `package main

//gpgpu:kernel
func twice(x float32) float32 {
	return 2 * x
}
`

const entry = `package main

import "fmt"

//gpgpu:entry
func main() {
	fmt.Println(twice(1))
}
`

func writeSources(t *testing.T) (dir string, files []string) {
	t.Helper()
	dir = t.TempDir()
	for name, src := range map[string]string{"kernels.go": kernels, "main.go": entry} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
		files = append(files, path)
	}
	return dir, files
}

func TestRun_HostBuild(t *testing.T) {
	dir, files := writeSources(t)
	out := filepath.Join(dir, "host")

	var stdout, stderr bytes.Buffer
	code := run(append([]string{"-target", "host", "-o", out}, files...), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	k, err := os.ReadFile(filepath.Join(out, "kernels_host.go"))
	require.NoError(t, err)
	assert.Contains(t, string(k), "func twice__cpu(x float32) float32 {")

	m, err := os.ReadFile(filepath.Join(out, "main_host.go"))
	require.NoError(t, err)
	assert.Contains(t, string(m), "defer gpgpuRuntime.MustInit().Release()")
	assert.Contains(t, string(m), "var gpgpuRuntime = gpgpu.NewRuntime()")

	assert.Contains(t, stdout.String(), "kernels_host.go: 1 kernels, 0 omitted")
}

func TestRun_DeviceBuild(t *testing.T) {
	dir, files := writeSources(t)

	var stdout, stderr bytes.Buffer
	code := run(append([]string{"-target", "device", "-suffix", ".gpu"}, files...), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	k, err := os.ReadFile(filepath.Join(dir, "kernels.gpu.go"))
	require.NoError(t, err)
	assert.Contains(t, string(k), "//gpgpu:compute\nfunc twice(x gpgpu.Input[float32], output gpgpu.Output[float32]) {")

	m, err := os.ReadFile(filepath.Join(dir, "main.gpu.go"))
	require.NoError(t, err)
	assert.NotContains(t, string(m), "func main")
	assert.NotContains(t, string(m), "fmt")
}

func TestRun_TransformationError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\n//gpgpu:kernel\nfunc f() float32 {\n\tpanic(0)\n}\n"), 0o600))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-target", "device", path}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "bad.go:4:")
	assert.Contains(t, stderr.String(), "missing return statement")

	_, err := os.Stat(filepath.Join(dir, "bad_device.go"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: gpgpu")

	stderr.Reset()
	assert.Equal(t, 2, run([]string{"-target", "gpu", "x.go"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "gpu")

	stderr.Reset()
	assert.Equal(t, 1, run([]string{filepath.Join(t.TempDir(), "missing.go")}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "read file")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("src", "calc_host.go"), outputPath(filepath.Join("src", "calc.go"), "", "_host"))
	assert.Equal(t, filepath.Join("out", "calc_device.go"), outputPath(filepath.Join("src", "calc.go"), "out", "_device"))
}

func TestPrintAdapters(t *testing.T) {
	var out bytes.Buffer
	printAdapters(&out, []webgpu.Adapter{{Device: "RTX 4070", Vendor: "NVIDIA", Backend: "D3D12", Type: "discrete"}})
	assert.Equal(t, "RTX 4070 (NVIDIA): D3D12, discrete\n", out.String())
}

func TestListAdapters_Unsupported(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("adapters depend on the machine")
	}
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, listAdapters(&stdout, &stderr))
	assert.Contains(t, stderr.String(), "not supported")
	assert.Empty(t, stdout.String())
}
