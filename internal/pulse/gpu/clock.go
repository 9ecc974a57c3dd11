// Package gpu implements the GPU timestamp subsystem of spec §4.7: the
// query-frame ring that resolves GPU timestamps NUM_FRAMES_DELAY frames
// after they are issued, and the CPU↔GPU clock mapping that lets those
// timestamps land on the same timeline as CPU events. The actual query
// issuance and fence wait belong to a per-API Backend (D3D12, Vulkan),
// which is out of scope and consumed only through the Backend interface.
package gpu

// ClockSync is the linear mapping a Backend supplies once at Start, by
// issuing one calibration query pairing a CPU and a GPU timestamp at
// (approximately) the same instant, alongside each domain's tick
// frequency (spec §4.7).
type ClockSync struct {
	FreqCPU int64
	FreqGPU int64
	TsCPU   int64
	TsGPU   int64
}

// ToCPU maps a GPU-domain timestamp onto the CPU clock:
// cpu_ts = tsCPU + (gpu_ts − tsGPU) · freqCPU / freqGPU.
func (c ClockSync) ToCPU(gpuTs int64) int64 {
	return c.TsCPU + (gpuTs-c.TsGPU)*c.FreqCPU/c.FreqGPU
}
