package webgpu

// Adapter describes a GPU adapter WebGPU can open a device on.
type Adapter struct {
	Vendor       string
	Device       string
	Description  string
	Architecture string
	Backend      string // e.g. D3D12 or Vulkan
	Type         string // discrete, integrated, CPU...
	VendorID     uint32
	DeviceID     uint32
}
