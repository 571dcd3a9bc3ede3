package device

import (
	"fmt"
	"os"
)

// DefaultModuleEnv names the environment variable holding the path of the
// compiled kernel module.
const DefaultModuleEnv = "GPGPU_KERNEL_MODULE"

// Extent is the number of workgroups of a dispatch in each dimension.
type Extent struct {
	X, Y, Z uint32
}

// Config controls where a Context finds its kernel module and how it
// dispatches. The zero value is usable.
type Config struct {
	// ModuleEnv is the environment variable naming the module file.
	ModuleEnv string

	// Lookup resolves environment variables; defaults to os.LookupEnv.
	Lookup func(key string) (string, bool)

	// ReadFile loads the module; defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)

	// Extent of every dispatch; defaults to a single workgroup.
	Extent Extent
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.ModuleEnv == "" {
		c.ModuleEnv = DefaultModuleEnv
	}
	if c.Lookup == nil {
		c.Lookup = os.LookupEnv
	}
	if c.ReadFile == nil {
		c.ReadFile = os.ReadFile
	}
	if c.Extent == (Extent{}) {
		c.Extent = Extent{X: 1, Y: 1, Z: 1}
	}
	return c
}

// loadModule reads the module binary named by the environment.
func (c Config) loadModule() (code []byte, path string, err error) {
	path, ok := c.Lookup(c.ModuleEnv)
	if !ok || path == "" {
		return nil, "", fmt.Errorf("%w: %s is not set", ErrShaderResourceNotFound, c.ModuleEnv)
	}
	code, err = c.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("%w: %w", ErrShaderResourceNotFound, err)
	}
	return code, path, nil
}
