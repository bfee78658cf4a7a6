package compute

import "errors"

var (
	// ErrShaderNotLoaded means the module a pipeline needs has not been
	// registered yet. Pipelines in this state are retried by ProcessQueue.
	ErrShaderNotLoaded = errors.New("compute: shader module not loaded")

	ErrEntryPointNotFound = errors.New("compute: entry point not found in module")
	ErrInvalidWorkgroup   = errors.New("compute: invalid workgroup size")
	ErrUnknownPipeline    = errors.New("compute: unknown pipeline id")
	ErrPipelineNotReady   = errors.New("compute: pipeline is not ready")
	ErrUnknownBackend     = errors.New("compute: unknown backend")

	// ErrBindingMismatch is returned when a resource does not match the
	// layout entry it is bound to.
	ErrBindingMismatch = errors.New("compute: resource does not match binding layout")
	ErrMissingBinding  = errors.New("compute: binding missing from bind group")

	ErrComputePassEnded      = errors.New("compute: compute pass has already ended")
	ErrComputePassOpen       = errors.New("compute: a compute pass is still recording")
	ErrEncoderFinished       = errors.New("compute: command encoder already finished")
	ErrNilComputePipeline    = errors.New("compute: compute pipeline is nil")
	ErrNilBindGroup          = errors.New("compute: bind group is nil")
	ErrBindGroupIndex        = errors.New("compute: bind group index exceeds maximum (3)")
	ErrNoPipelineSet         = errors.New("compute: dispatch without a pipeline")
	ErrBindGroupLayout       = errors.New("compute: bind groups do not match pipeline layout")
	ErrWorkgroupCountZero    = errors.New("compute: workgroup count must be greater than zero")
	ErrDebugGroupUnderflow   = errors.New("compute: pop without matching push debug group")
	ErrUnbalancedDebugGroups = errors.New("compute: debug groups left open at end of pass")
)
