package kernel

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// MirrorSuffix is appended to a kernel name to form its host mirror.
const MirrorSuffix = "__cpu"

// DefaultRuntimeVar is the package variable holding the runtime handle in
// generated host code.
const DefaultRuntimeVar = "gpgpuRuntime"

// EmitOptions configures the Dual-Emission Engine.
type EmitOptions struct {
	// Qualifier references the runtime package; defaults to the local name
	// used by the kernel's file, or "gpgpu".
	Qualifier string
	// RuntimeVar names the runtime handle used by host code.
	RuntimeVar string
	// MirrorDispatch makes the host mirror dispatch the device entry by name
	// before running its own body. Off by default, which keeps the mirror a
	// byte-for-byte copy of the kernel.
	MirrorDispatch bool
}

func (o EmitOptions) withDefaults(sig *Signature) EmitOptions {
	if o.Qualifier == "" {
		o.Qualifier = sig.Qualifier()
	}
	if o.RuntimeVar == "" {
		o.RuntimeVar = DefaultRuntimeVar
	}
	return o
}

// ArtifactPair holds everything emitted for one kernel. Device is compiled
// into the device module; Stub and Mirror are the two host callables sharing
// the kernel's base name.
type ArtifactPair struct {
	Entry      *DeviceEntry
	Device     []byte // rebound entry point, tagged with ComputeDirective
	Stub       []byte // host function dispatching Device through the runtime
	Mirror     []byte // original declaration renamed to MirrorName
	MirrorName string
}

// Emit runs the rebinding passes on sig and renders both targets.
func Emit(sig *Signature, opts EmitOptions) (*ArtifactPair, error) {
	opts = opts.withDefaults(sig)
	entry, err := sig.Rebind()
	if err != nil {
		return nil, err
	}
	if err := checkHostNames(sig, opts); err != nil {
		return nil, err
	}
	return &ArtifactPair{
		Entry:      entry,
		Device:     entry.Source(opts.Qualifier),
		Stub:       stubSource(sig, opts),
		Mirror:     mirrorSource(sig, opts),
		MirrorName: sig.Name + MirrorSuffix,
	}, nil
}

// checkHostNames rejects parameters that would shadow identifiers the host
// code relies on.
func checkHostNames(sig *Signature, opts EmitOptions) error {
	for _, p := range sig.Params {
		if p.Name == opts.Qualifier || p.Name == opts.RuntimeVar {
			return sig.errorAt(p.Type, errors.Wrapf(ErrBindingNameCollision, "parameter %q shadows %q", p.Name, p.Name))
		}
	}
	if results := sig.Decl.Type.Results; results != nil {
		for _, field := range results.List {
			for _, name := range field.Names {
				switch name.Name {
				case OutputName:
					return sig.errorAt(name, errors.Wrapf(ErrBindingNameCollision, "result %q is reserved for the output binding", OutputName))
				case opts.Qualifier, opts.RuntimeVar:
					return sig.errorAt(name, errors.Wrapf(ErrBindingNameCollision, "result %q shadows %q", name.Name, name.Name))
				}
			}
		}
	}
	return nil
}

// Source renders the device entry declaration.
func (e *DeviceEntry) Source(qualifier string) []byte {
	src := e.sig.Src
	var b bytes.Buffer
	b.WriteString(ComputeDirective)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "func %s(", e.Name)
	for i, bnd := range e.Bindings {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s.%s[%s]", bnd.Name, qualifier, bnd.Direction, src.Text(bnd.Type))
	}
	b.WriteString(") ")
	b.Write(e.body())
	return b.Bytes()
}

// body returns the kernel body with the terminal return turned into a store
// through the output binding. A named result loses its declaration with the
// result list, so it is redeclared as the first statement.
func (e *DeviceEntry) body() []byte {
	src := e.sig.Src
	body := e.sig.Body
	start, end := src.Offset(body.Lbrace), src.Offset(body.Rbrace)+1
	var splices []splice
	if e.sig.ResultName != "" {
		at := start + 1
		decl := "\n\tvar " + e.sig.ResultName + " " + src.Text(e.sig.Result)
		if src.Content[at] != '\n' {
			decl += "\n"
		}
		splices = append(splices, splice{from: at, to: at, text: decl})
	}
	if e.result != nil {
		splices = append(splices, splice{
			from: src.Offset(e.result.Pos()),
			to:   src.Offset(e.result.End()),
			text: e.Assignment(),
		})
	}
	return render(src.Content, start, end, splices...)
}

// Assignment returns the statement replacing the terminal return, or "" when
// the kernel returns nothing.
func (e *DeviceEntry) Assignment() string {
	if e.result == nil {
		return ""
	}
	if len(e.result.Results) == 0 {
		return "*" + OutputName + " = " + e.sig.ResultName
	}
	return "*" + OutputName + " = " + e.sig.Src.Text(e.result.Results[0])
}

// stubSource renders the host function that launches the device entry and
// hands back the output binding as its result.
func stubSource(sig *Signature, opts EmitOptions) []byte {
	src := sig.Src
	ft := sig.Decl.Type
	var b bytes.Buffer
	fmt.Fprintf(&b, "func %s%s", sig.Name, src.Text(ft.Params))
	if ft.Results != nil && len(ft.Results.List) > 0 {
		b.WriteString(" " + src.Text(ft.Results))
	}
	b.WriteString(" {\n")
	if sig.HasResult() {
		fmt.Fprintf(&b, "\tvar %s %s\n", OutputName, src.Text(sig.Result))
	}
	b.WriteString("\t" + launchCall(sig, opts, "&"+OutputName) + "\n")
	if sig.HasResult() {
		fmt.Fprintf(&b, "\treturn %s\n", OutputName)
	}
	b.WriteString("}")
	return b.Bytes()
}

// mirrorSource copies the original declaration from the func keyword to the
// closing brace, replacing only the name identifier.
func mirrorSource(sig *Signature, opts EmitOptions) []byte {
	src := sig.Src
	decl := sig.Decl
	splices := []splice{{
		from: src.Offset(decl.Name.Pos()),
		to:   src.Offset(decl.Name.End()),
		text: sig.Name + MirrorSuffix,
	}}
	if opts.MirrorDispatch {
		at := src.Offset(decl.Body.Lbrace) + 1
		var out string
		if sig.HasResult() {
			out = "new(" + src.Text(sig.Result) + ")"
		}
		splices = append(splices, splice{from: at, to: at, text: "\n\t" + launchCall(sig, opts, out)})
	}
	return render(src.Content, src.Offset(decl.Type.Func), src.Offset(decl.End()), splices...)
}

// launchCall renders the dispatch of sig by name with its parameters as input
// bindings and out, when non-empty, as the output binding.
func launchCall(sig *Signature, opts EmitOptions, out string) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s.MustLaunch(%q", opts.RuntimeVar, sig.Name)
	for _, p := range sig.Params {
		fmt.Fprintf(&b, ", %s.In(%s)", opts.Qualifier, p.Name)
	}
	if sig.HasResult() && out != "" {
		fmt.Fprintf(&b, ", %s.Out(%s)", opts.Qualifier, out)
	}
	b.WriteString(")")
	return b.String()
}

// BindingTypes renders the binding types of the entry, e.g. "Input[float32]".
func (e *DeviceEntry) BindingTypes() []string {
	types := make([]string, len(e.Bindings))
	for i, bnd := range e.Bindings {
		types[i] = fmt.Sprintf("%s[%s]", bnd.Direction, e.sig.Src.Text(bnd.Type))
	}
	return types
}
