package webgpu

import "fmt"

// guard turns a panic of the native library into an error. It must be
// deferred directly.
func guard(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("webgpu: %s: %v", op, r)
	}
}

// releaseOnError releases r when the surrounding call fails. Deferred before
// guard, it also sees errors guard recovered.
func releaseOnError(r interface{ Release() }, err *error) {
	if *err != nil {
		r.Release()
	}
}
