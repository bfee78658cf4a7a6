// Package compute provides the data-parallel device the fluid kernels run on.
//
// The model follows a GPU compute API:
//
//   - Textures, storage buffers and uniforms are bound to kernels through
//     bind groups validated against a layout.
//   - Kernels live in shader modules registered with a ShaderLibrary and are
//     compiled asynchronously by the PipelineCache.
//   - Work is recorded into a CommandEncoder as compute passes and executed
//     in order by the Queue. Every dispatch is followed by a barrier, so a
//     pass always observes the complete writes of the passes before it.
//
// # Backends
//
// Dispatches are executed by a Backend:
//
//   - parallel: workgroups spread across one goroutine per CPU
//   - serial: a single goroutine, useful when debugging kernels
//
// The parallel backend is selected by default:
//
//	dev := compute.NewDevice(compute.GetBackend())
//	id := dev.Pipelines.QueueComputePipeline(desc)
//
// Kernels must not read a texture element another invocation of the same
// dispatch writes. Read one generation and write the other.
package compute
