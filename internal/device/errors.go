package device

import "errors"

// Runtime errors returned by Launch and Acquire.
var (
	ErrDeviceAcquisitionFailed = errors.New("device acquisition failed")
	ErrShaderResourceNotFound  = errors.New("shader resource not found")
	ErrInvalidBinding          = errors.New("invalid binding")
	ErrReleased                = errors.New("device context released")
)
