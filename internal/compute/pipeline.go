package compute

import (
	"errors"
	"fmt"
	"sync"
)

// maxWorkgroupInvocations is the per-workgroup invocation limit.
const maxWorkgroupInvocations = 256

type PipelineID int

type PipelineStatus int

const (
	PipelineQueued PipelineStatus = iota
	PipelineCreating
	PipelineOk
	PipelineErr
)

func (s PipelineStatus) String() string {
	switch s {
	case PipelineQueued:
		return "Queued"
	case PipelineCreating:
		return "Creating"
	case PipelineOk:
		return "Ok"
	case PipelineErr:
		return "Err"
	default:
		return fmt.Sprintf("PipelineStatus(%d)", int(s))
	}
}

// PipelineState is the compile state of a cached pipeline. Err is set only
// when Status is PipelineErr.
type PipelineState struct {
	Status PipelineStatus
	Err    error
}

type ComputePipelineDescriptor struct {
	Label         string
	Layout        []*BindGroupLayout
	Shader        string
	EntryPoint    string
	WorkgroupSize Dim3
}

// ComputePipeline is a compiled kernel ready to dispatch.
type ComputePipeline struct {
	id            PipelineID
	label         string
	layout        []*BindGroupLayout
	workgroupSize Dim3
	entry         EntryPoint
}

func (p *ComputePipeline) ID() PipelineID             { return p.id }
func (p *ComputePipeline) Label() string              { return p.label }
func (p *ComputePipeline) WorkgroupSize() Dim3        { return p.workgroupSize }
func (p *ComputePipeline) Layout() []*BindGroupLayout { return p.layout }

type cachedPipeline struct {
	desc     ComputePipelineDescriptor
	state    PipelineState
	pipeline *ComputePipeline
}

// PipelineCache compiles pipelines in the background. Callers queue a
// descriptor, keep the id, and poll the state until it is Ok.
type PipelineCache struct {
	lib *ShaderLibrary

	mu        sync.Mutex
	pipelines []*cachedPipeline
	wg        sync.WaitGroup
}

func NewPipelineCache(lib *ShaderLibrary) *PipelineCache {
	return &PipelineCache{lib: lib}
}

// QueueComputePipeline registers desc and starts compiling it.
func (c *PipelineCache) QueueComputePipeline(desc ComputePipelineDescriptor) PipelineID {
	c.mu.Lock()
	id := PipelineID(len(c.pipelines))
	c.pipelines = append(c.pipelines, &cachedPipeline{
		desc:  desc,
		state: PipelineState{Status: PipelineQueued},
	})
	c.mu.Unlock()

	c.compileAsync(id)
	return id
}

// ProcessQueue restarts compilation of pipelines that were waiting on a
// shader module.
func (c *PipelineCache) ProcessQueue() {
	c.mu.Lock()
	var retry []PipelineID
	for i, p := range c.pipelines {
		if p.state.Status == PipelineErr && errors.Is(p.state.Err, ErrShaderNotLoaded) {
			p.state = PipelineState{Status: PipelineQueued}
			retry = append(retry, PipelineID(i))
		}
	}
	c.mu.Unlock()

	for _, id := range retry {
		c.compileAsync(id)
	}
}

// Wait blocks until no compilation is in flight.
func (c *PipelineCache) Wait() {
	c.wg.Wait()
}

func (c *PipelineCache) GetComputePipelineState(id PipelineID) PipelineState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if int(id) < 0 || int(id) >= len(c.pipelines) {
		return PipelineState{Status: PipelineErr, Err: fmt.Errorf("%w: %d", ErrUnknownPipeline, id)}
	}
	return c.pipelines[id].state
}

func (c *PipelineCache) GetComputePipeline(id PipelineID) (*ComputePipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if int(id) < 0 || int(id) >= len(c.pipelines) {
		return nil, false
	}
	p := c.pipelines[id]
	if p.state.Status != PipelineOk {
		return nil, false
	}
	return p.pipeline, true
}

// IsReady reports whether pipeline id can be dispatched. A pipeline still
// waiting on its shader is not ready and not an error; any other compile
// failure is returned.
func (c *PipelineCache) IsReady(id PipelineID) (bool, error) {
	st := c.GetComputePipelineState(id)
	switch st.Status {
	case PipelineOk:
		return true, nil
	case PipelineErr:
		if errors.Is(st.Err, ErrShaderNotLoaded) {
			return false, nil
		}
		return false, st.Err
	default:
		return false, nil
	}
}

func (c *PipelineCache) compileAsync(id PipelineID) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.mu.Lock()
		p := c.pipelines[id]
		p.state = PipelineState{Status: PipelineCreating}
		desc := p.desc
		c.mu.Unlock()

		pipeline, err := c.compile(id, desc)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			p.state = PipelineState{Status: PipelineErr, Err: err}
			return
		}
		p.pipeline = pipeline
		p.state = PipelineState{Status: PipelineOk}
	}()
}

func (c *PipelineCache) compile(id PipelineID, desc ComputePipelineDescriptor) (*ComputePipeline, error) {
	entry, err := c.lib.lookup(desc.Shader, desc.EntryPoint)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Label, err)
	}

	ws := desc.WorkgroupSize
	if ws.Z == 0 {
		ws.Z = 1
	}
	if ws.X == 0 || ws.Y == 0 || ws.Count() > maxWorkgroupInvocations {
		return nil, fmt.Errorf("pipeline %q: workgroup size %s: %w", desc.Label, ws, ErrInvalidWorkgroup)
	}

	for i, l := range desc.Layout {
		if l == nil {
			return nil, fmt.Errorf("pipeline %q: layout %d is nil: %w", desc.Label, i, ErrBindGroupLayout)
		}
	}

	return &ComputePipeline{
		id:            id,
		label:         desc.Label,
		layout:        desc.Layout,
		workgroupSize: ws,
		entry:         entry,
	}, nil
}
