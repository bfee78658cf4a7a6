package compute

import (
	"fmt"
	"strings"
	"sync"
)

const maxBindGroups = 4

type commandKind int

const (
	cmdDispatch commandKind = iota
	cmdCopy
)

type command struct {
	kind     commandKind
	scope    string
	pipeline *ComputePipeline
	groups   []*BindGroup
	count    Dim3
	copyFn   func()
}

// CommandBuffer is a finished, immutable list of commands.
type CommandBuffer struct {
	label    string
	commands []command
}

func (b *CommandBuffer) Label() string { return b.label }

// DispatchCount is the number of dispatches recorded in the buffer.
func (b *CommandBuffer) DispatchCount() int {
	n := 0
	for _, c := range b.commands {
		if c.kind == cmdDispatch {
			n++
		}
	}
	return n
}

// CommandEncoder records compute passes and copies into a CommandBuffer.
// It is not safe for concurrent use.
type CommandEncoder struct {
	label    string
	commands []command
	open     *ComputePass
	finished bool
	err      error
}

func NewCommandEncoder(label string) *CommandEncoder {
	return &CommandEncoder{label: label}
}

// BeginComputePass starts a pass. Errors are deferred to Finish.
func (e *CommandEncoder) BeginComputePass(label string) *ComputePass {
	p := &ComputePass{encoder: e, label: label}
	if e.finished {
		e.setErr(ErrEncoderFinished)
		p.state = ComputePassStateEnded
		return p
	}
	if e.open != nil {
		e.setErr(fmt.Errorf("begin pass %q: %w", label, ErrComputePassOpen))
	}
	e.open = p
	return p
}

// CopyToStaging records a copy executed in stream order, after every
// dispatch recorded before it has completed.
func (e *CommandEncoder) CopyToStaging(label string, copyFn func()) {
	if e.finished {
		e.setErr(ErrEncoderFinished)
		return
	}
	if e.open != nil {
		e.setErr(fmt.Errorf("copy %q: %w", label, ErrComputePassOpen))
		return
	}
	e.commands = append(e.commands, command{kind: cmdCopy, scope: label, copyFn: copyFn})
}

func (e *CommandEncoder) Finish() (*CommandBuffer, error) {
	if e.finished {
		return nil, ErrEncoderFinished
	}
	e.finished = true
	if e.open != nil {
		e.setErr(fmt.Errorf("finish: %w", ErrComputePassOpen))
	}
	if e.err != nil {
		return nil, e.err
	}
	return &CommandBuffer{label: e.label, commands: e.commands}, nil
}

func (e *CommandEncoder) setErr(err error) {
	if e.err == nil {
		e.err = err
	}
}

// ComputePassState represents the state of a compute pass.
type ComputePassState int

const (
	ComputePassStateRecording ComputePassState = iota
	ComputePassStateEnded
)

func (s ComputePassState) String() string {
	switch s {
	case ComputePassStateRecording:
		return "Recording"
	case ComputePassStateEnded:
		return "Ended"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// ComputePass records dispatches within a pass.
//
// State machine:
//
//	Recording -> End() -> Ended
type ComputePass struct {
	mu sync.Mutex

	encoder  *CommandEncoder
	label    string
	state    ComputePassState
	pipeline *ComputePipeline
	groups   [maxBindGroups]*BindGroup
	debug    []string

	dispatchCount uint32
}

func (p *ComputePass) State() ComputePassState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *ComputePass) DispatchCount() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispatchCount
}

// checkRecording returns an error if the pass is not recording.
// The caller must hold p.mu.
func (p *ComputePass) checkRecording() error {
	if p.state != ComputePassStateRecording {
		return ErrComputePassEnded
	}
	return nil
}

func (p *ComputePass) SetPipeline(pipeline *ComputePipeline) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRecording(); err != nil {
		return fmt.Errorf("set pipeline: %w", err)
	}
	if pipeline == nil {
		return ErrNilComputePipeline
	}
	p.pipeline = pipeline
	return nil
}

func (p *ComputePass) SetBindGroup(index uint32, group *BindGroup) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRecording(); err != nil {
		return fmt.Errorf("set bind group: %w", err)
	}
	if index >= maxBindGroups {
		return fmt.Errorf("%w: index %d", ErrBindGroupIndex, index)
	}
	if group == nil {
		return ErrNilBindGroup
	}
	p.groups[index] = group
	return nil
}

// DispatchWorkgroups records a dispatch of x*y*z workgroups with the
// current pipeline and bind groups.
func (p *ComputePass) DispatchWorkgroups(x, y, z uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRecording(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if p.pipeline == nil {
		return ErrNoPipelineSet
	}
	if x == 0 || y == 0 || z == 0 {
		return fmt.Errorf("%w: (%d, %d, %d)", ErrWorkgroupCountZero, x, y, z)
	}

	layout := p.pipeline.layout
	groups := make([]*BindGroup, len(layout))
	for i, l := range layout {
		g := p.groups[i]
		if g == nil || g.layout != l {
			return fmt.Errorf("dispatch %q group %d: %w", p.pipeline.label, i, ErrBindGroupLayout)
		}
		groups[i] = g
	}

	p.encoder.commands = append(p.encoder.commands, command{
		kind:     cmdDispatch,
		scope:    p.scope(),
		pipeline: p.pipeline,
		groups:   groups,
		count:    Dim3{X: x, Y: y, Z: z},
	})
	p.dispatchCount++
	return nil
}

func (p *ComputePass) PushDebugGroup(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.debug = append(p.debug, label)
}

func (p *ComputePass) PopDebugGroup() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.debug) == 0 {
		return ErrDebugGroupUnderflow
	}
	p.debug = p.debug[:len(p.debug)-1]
	return nil
}

// End completes the pass and returns control to the encoder.
func (p *ComputePass) End() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRecording(); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	p.state = ComputePassStateEnded
	if p.encoder.open == p {
		p.encoder.open = nil
	}
	if len(p.debug) > 0 {
		err := fmt.Errorf("pass %q: %w: %s", p.label, ErrUnbalancedDebugGroups, strings.Join(p.debug, "/"))
		p.encoder.setErr(err)
		return err
	}
	return nil
}

// scope is the label timings are attributed to. The caller must hold p.mu.
func (p *ComputePass) scope() string {
	if len(p.debug) == 0 {
		return p.label
	}
	return p.debug[len(p.debug)-1]
}
