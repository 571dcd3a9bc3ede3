// Package main provides the gpgpu CLI, which generates the host or the device
// build of authored kernel files.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/born-ml/gpgpu"
	"github.com/born-ml/gpgpu/backend/webgpu"
	"github.com/born-ml/gpgpu/internal/marker"
)

const version = "v0.1.0-dev"

const usage = `Usage: gpgpu -target host|device [-o dir] [-suffix _host] [-mirror-dispatch] [-v] files...
       gpgpu adapters
       gpgpu version

Files in the same directory form one package.
`

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("gpgpu %s\n", version)
			return
		case "adapters":
			os.Exit(listAdapters(os.Stdout, os.Stderr))
		}
	}
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the exit status.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gpgpu", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	var (
		targetName     = fs.String("target", "host", "build to generate: host or device")
		outDir         = fs.String("o", "", "output directory (default: next to each source)")
		suffix         = fs.String("suffix", "", "file name suffix of generated files (default: _<target>)")
		mirrorDispatch = fs.Bool("mirror-dispatch", false, "make host mirrors dispatch their device entry first")
		verbose        = fs.Bool("v", false, "verbose logging")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()
	gpgpu.SetLogger(logger)

	target, err := marker.ParseTarget(*targetName)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if *suffix == "" {
		*suffix = "_" + target.String()
	}
	opts := gpgpu.GenerateOptions{Target: target, MirrorDispatch: *mirrorDispatch}

	packages, err := readPackages(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var (
		results []*gpgpu.GenerateResult
		errs    error
	)
	for _, files := range packages {
		generated, err := gpgpu.GeneratePackage(files, opts)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		results = append(results, generated...)
	}
	if errs != nil {
		for _, err := range multierr.Errors(errs) {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}

	written := make([]string, 0, len(results))
	for _, res := range results {
		path := outputPath(res.Filename, *outDir, *suffix)
		if err := writeFile(path, res.Source); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		logger.Info("wrote generated file", zap.String("path", path), zap.Stringer("target", target))
		written = append(written, path)
	}
	printReport(stdout, target, results, written)
	return 0
}

// listAdapters prints the GPU adapters and returns the exit status.
func listAdapters(stdout, stderr io.Writer) int {
	adapters, err := webgpu.ListAdapters()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	printAdapters(stdout, adapters)
	return 0
}

// readPackages reads the files and groups them by directory, keeping the
// order of the arguments.
func readPackages(paths []string) ([][]gpgpu.SourceFile, error) {
	index := map[string]int{}
	var packages [][]gpgpu.SourceFile
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		dir := filepath.Dir(path)
		i, ok := index[dir]
		if !ok {
			i = len(packages)
			index[dir] = i
			packages = append(packages, nil)
		}
		packages[i] = append(packages[i], gpgpu.SourceFile{Name: path, Source: src})
	}
	return packages, nil
}

func outputPath(source, outDir, suffix string) string {
	dir, base := filepath.Split(source)
	if outDir != "" {
		dir = outDir
	}
	return filepath.Join(dir, strings.TrimSuffix(base, ".go")+suffix+".go")
}

func writeFile(path string, src []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, src, 0o600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func newLogger(verbose bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		logger, err = cfg.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
