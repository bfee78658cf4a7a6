package compute

// Device bundles the shader library, pipeline cache and queue that share a
// backend.
type Device struct {
	Library   *ShaderLibrary
	Pipelines *PipelineCache
	Queue     *Queue
}

func NewDevice(b Backend) *Device {
	if b == nil {
		b = GetBackend()
	}
	lib := NewShaderLibrary()
	return &Device{
		Library:   lib,
		Pipelines: NewPipelineCache(lib),
		Queue:     NewQueue(b),
	}
}

func (d *Device) BackendName() string { return d.Queue.backend.Name() }

// Close waits for background compilation and completion callbacks.
func (d *Device) Close() {
	d.Pipelines.Wait()
	d.Queue.WaitCallbacks()
}
