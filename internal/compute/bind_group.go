package compute

import (
	"fmt"
	"sort"
)

type Access int

const (
	ReadOnly Access = iota
	WriteOnly
	ReadWrite
)

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "read"
	case WriteOnly:
		return "write"
	case ReadWrite:
		return "read_write"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

type BindGroupLayoutEntry struct {
	Binding uint32
	Kind    ResourceKind
	Format  TextureFormat
	Access  Access
}

func StorageTextureEntry(binding uint32, format TextureFormat, access Access) BindGroupLayoutEntry {
	return BindGroupLayoutEntry{Binding: binding, Kind: KindStorageTexture, Format: format, Access: access}
}

func StorageBufferEntry(binding uint32, access Access) BindGroupLayoutEntry {
	return BindGroupLayoutEntry{Binding: binding, Kind: KindStorageBuffer, Access: access}
}

func AtomicBinsEntry(binding uint32) BindGroupLayoutEntry {
	return BindGroupLayoutEntry{Binding: binding, Kind: KindAtomicBins, Access: ReadWrite}
}

func UniformEntry(binding uint32) BindGroupLayoutEntry {
	return BindGroupLayoutEntry{Binding: binding, Kind: KindUniform, Access: ReadOnly}
}

type BindGroupLayout struct {
	label   string
	entries []BindGroupLayoutEntry
}

func NewBindGroupLayout(label string, entries ...BindGroupLayoutEntry) *BindGroupLayout {
	sorted := append([]BindGroupLayoutEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Binding < sorted[j].Binding })
	return &BindGroupLayout{label: label, entries: sorted}
}

func (l *BindGroupLayout) Label() string                   { return l.label }
func (l *BindGroupLayout) Entries() []BindGroupLayoutEntry { return l.entries }

type BindGroupEntry struct {
	Binding  uint32
	Resource Resource
}

// Entries builds bind group entries numbered from 0 in argument order.
func Entries(resources ...Resource) []BindGroupEntry {
	out := make([]BindGroupEntry, len(resources))
	for i, r := range resources {
		out[i] = BindGroupEntry{Binding: uint32(i), Resource: r}
	}
	return out
}

type BindGroup struct {
	label     string
	layout    *BindGroupLayout
	resources map[uint32]Resource
}

// NewBindGroup binds resources to a layout. Every layout entry must be
// bound exactly once with a resource of the declared kind and format.
func NewBindGroup(label string, layout *BindGroupLayout, entries ...BindGroupEntry) (*BindGroup, error) {
	g := &BindGroup{label: label, layout: layout, resources: make(map[uint32]Resource, len(entries))}

	for _, e := range entries {
		if e.Resource == nil {
			return nil, fmt.Errorf("bind group %q binding %d: %w", label, e.Binding, ErrMissingBinding)
		}
		if _, dup := g.resources[e.Binding]; dup {
			return nil, fmt.Errorf("bind group %q binding %d bound twice: %w", label, e.Binding, ErrBindingMismatch)
		}
		g.resources[e.Binding] = e.Resource
	}

	for _, le := range layout.entries {
		r, ok := g.resources[le.Binding]
		if !ok {
			return nil, fmt.Errorf("bind group %q binding %d: %w", label, le.Binding, ErrMissingBinding)
		}
		if r.Kind() != le.Kind {
			return nil, fmt.Errorf("bind group %q binding %d: expected %s, got %s (%s): %w",
				label, le.Binding, le.Kind, r.Kind(), r.Label(), ErrBindingMismatch)
		}
		if tex, ok := r.(*Texture); ok && tex.Format() != le.Format {
			return nil, fmt.Errorf("bind group %q binding %d: expected format %s, got %s (%s): %w",
				label, le.Binding, le.Format, tex.Format(), tex.Label(), ErrBindingMismatch)
		}
	}

	if len(g.resources) != len(layout.entries) {
		return nil, fmt.Errorf("bind group %q: %d resources for %d layout entries: %w",
			label, len(g.resources), len(layout.entries), ErrBindingMismatch)
	}

	return g, nil
}

func (g *BindGroup) Label() string              { return g.label }
func (g *BindGroup) Layout() *BindGroupLayout   { return g.layout }
func (g *BindGroup) Resource(b uint32) Resource { return g.resources[b] }

func (g *BindGroup) Texture(binding uint32) (*Texture, error) {
	t, ok := g.resources[binding].(*Texture)
	if !ok {
		return nil, fmt.Errorf("bind group %q binding %d is not a texture: %w", g.label, binding, ErrBindingMismatch)
	}
	return t, nil
}

func (g *BindGroup) Bins(binding uint32) (*AtomicBins, error) {
	b, ok := g.resources[binding].(*AtomicBins)
	if !ok {
		return nil, fmt.Errorf("bind group %q binding %d is not atomic bins: %w", g.label, binding, ErrBindingMismatch)
	}
	return b, nil
}

func BufferBinding[T any](g *BindGroup, binding uint32) (*StorageBuffer[T], error) {
	b, ok := g.resources[binding].(*StorageBuffer[T])
	if !ok {
		return nil, fmt.Errorf("bind group %q binding %d is not a %T buffer: %w", g.label, binding, *new(T), ErrBindingMismatch)
	}
	return b, nil
}

func UniformBinding[T any](g *BindGroup, binding uint32) (*UniformBuffer[T], error) {
	u, ok := g.resources[binding].(*UniformBuffer[T])
	if !ok {
		return nil, fmt.Errorf("bind group %q binding %d is not a %T uniform: %w", g.label, binding, *new(T), ErrBindingMismatch)
	}
	return u, nil
}
