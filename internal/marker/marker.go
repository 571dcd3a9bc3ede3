// Package marker expands the gpgpu authoring directives of a Go file into the
// declarations of a host build or a device build.
//
// Directives are line comments in the doc comment of a top-level declaration:
//
//	//gpgpu:entry          wraps the startup function, host build only
//	//gpgpu:host           keeps the declaration in the host build only
//	//gpgpu:kernel [async] emits a device entry point and its host callables
//
// At most one directive may decorate a declaration.
package marker

import (
	"errors"
	"go/ast"
	"go/token"
	"strings"

	perrors "github.com/pkg/errors"

	"github.com/born-ml/gpgpu/internal/kernel"
)

// Prefix starts every gpgpu directive.
const Prefix = "//gpgpu:"

// Marker errors.
var (
	ErrConflictingMarkers = errors.New("conflicting markers")
	ErrMisplacedMarker    = errors.New("misplaced marker")
	ErrUnknownMarker      = errors.New("unknown marker")
)

// Kind identifies a directive.
type Kind int

// Directive kinds. Compute is never authored: the generator puts it on device
// entry points.
const (
	None Kind = iota
	Entry
	HostOnly
	Kernel
	Compute
)

// String returns the directive name.
func (k Kind) String() string {
	switch k {
	case Entry:
		return "entry"
	case HostOnly:
		return "host"
	case Kernel:
		return "kernel"
	case Compute:
		return "compute"
	default:
		return "none"
	}
}

var kinds = map[string]Kind{
	"entry":   Entry,
	"host":    HostOnly,
	"kernel":  Kernel,
	"compute": Compute,
}

// Marker is the parsed directive of one declaration.
type Marker struct {
	Kind  Kind
	Async bool
	Pos   token.Pos
}

// Target selects which build a file is generated for.
type Target int

// Build targets.
const (
	HostBuild Target = iota
	DeviceBuild
)

// String returns the target name as accepted by ParseTarget.
func (t Target) String() string {
	if t == DeviceBuild {
		return "device"
	}
	return "host"
}

// ParseTarget parses "host" or "device".
func ParseTarget(s string) (Target, error) {
	switch s {
	case "host":
		return HostBuild, nil
	case "device":
		return DeviceBuild, nil
	}
	return HostBuild, perrors.Errorf("unknown build target %q (want host or device)", s)
}

// Parse extracts the directive from a doc comment. A declaration carrying
// both the kernel and compute directives has been rebound before and is
// rejected with kernel.ErrAlreadyRebound.
func Parse(doc *ast.CommentGroup) (Marker, error) {
	var found []Marker
	if doc == nil {
		return Marker{}, nil
	}
	for _, c := range doc.List {
		text := strings.TrimSpace(c.Text)
		if !strings.HasPrefix(text, Prefix) {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(text, Prefix))
		if len(fields) == 0 {
			return Marker{}, perrors.Wrapf(ErrUnknownMarker, "empty directive")
		}
		kind, ok := kinds[fields[0]]
		if !ok {
			return Marker{}, perrors.Wrapf(ErrUnknownMarker, "%s%s", Prefix, fields[0])
		}
		m := Marker{Kind: kind, Pos: c.Pos()}
		for _, opt := range fields[1:] {
			if kind != Kernel || opt != "async" {
				return Marker{}, perrors.Wrapf(ErrUnknownMarker, "option %q of %s%s", opt, Prefix, kind)
			}
			m.Async = true
		}
		found = append(found, m)
	}

	switch len(found) {
	case 0:
		return Marker{}, nil
	case 1:
		return found[0], nil
	}
	if len(found) == 2 && hasKinds(found, Kernel, Compute) {
		return Marker{}, perrors.Wrap(kernel.ErrAlreadyRebound, "kernel directive on a compute entry")
	}
	names := make([]string, len(found))
	for i, m := range found {
		names[i] = Prefix + m.Kind.String()
	}
	return Marker{}, perrors.Wrap(ErrConflictingMarkers, strings.Join(names, ", "))
}

// IsDirective reports whether a comment line is a gpgpu directive.
func IsDirective(c *ast.Comment) bool {
	return strings.HasPrefix(strings.TrimSpace(c.Text), Prefix)
}

func hasKinds(ms []Marker, a, b Kind) bool {
	var gotA, gotB bool
	for _, m := range ms {
		gotA = gotA || m.Kind == a
		gotB = gotB || m.Kind == b
	}
	return gotA && gotB
}
