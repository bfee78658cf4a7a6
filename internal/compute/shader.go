package compute

import (
	"fmt"
	"sort"
	"sync"
)

// EntryPoint resolves the resources a kernel needs from its bind groups and
// returns the per-invocation function. Errors are configuration errors.
type EntryPoint func(groups []*BindGroup) (Kernel, error)

// ShaderModule is a named set of entry points.
type ShaderModule struct {
	name    string
	entries map[string]EntryPoint
}

func NewShaderModule(name string) *ShaderModule {
	return &ShaderModule{name: name, entries: make(map[string]EntryPoint)}
}

func (m *ShaderModule) Name() string { return m.name }

// AddEntryPoint registers fn under name and returns the module for chaining.
func (m *ShaderModule) AddEntryPoint(name string, fn EntryPoint) *ShaderModule {
	m.entries[name] = fn
	return m
}

func (m *ShaderModule) EntryPoints() []string {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ShaderLibrary holds the loaded shader modules of a device. Modules can be
// loaded at any time; pipelines that were waiting on them compile on the
// next PipelineCache.ProcessQueue.
type ShaderLibrary struct {
	mu      sync.RWMutex
	modules map[string]*ShaderModule
}

func NewShaderLibrary() *ShaderLibrary {
	return &ShaderLibrary{modules: make(map[string]*ShaderModule)}
}

func (l *ShaderLibrary) Load(m *ShaderModule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[m.name] = m
}

func (l *ShaderLibrary) Loaded(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.modules[name]
	return ok
}

func (l *ShaderLibrary) lookup(module, entry string) (EntryPoint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.modules[module]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShaderNotLoaded, module)
	}
	fn, ok := m.entries[entry]
	if !ok {
		return nil, fmt.Errorf("%w: %s::%s", ErrEntryPointNotFound, module, entry)
	}
	return fn, nil
}
