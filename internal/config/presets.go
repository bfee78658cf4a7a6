package config

import (
	"math"
	"sort"
)

func fluidAt(w, h uint32, level float32, x, y float32) FluidConfig {
	f := DefaultFluid()
	f.Width, f.Height = w, h
	f.InitialFluidLevel = level
	f.Position = [2]float32{x, y}
	return f
}

func ball(r, x, y, density float32) BodyConfig {
	return BodyConfig{Shape: "ball", Radius: r, Position: [2]float32{x, y}, Type: "dynamic", Density: density}
}

func cuboid(hx, hy, x, y, density float32) BodyConfig {
	return BodyConfig{Shape: "cuboid", HalfExtents: [2]float32{hx, hy}, Position: [2]float32{x, y}, Type: "dynamic", Density: density}
}

// triangle is equilateral with the given side, centred on its centroid.
func triangle(side, x, y, density float32) BodyConfig {
	s3 := float32(math.Sqrt(3))
	return BodyConfig{
		Shape: "triangle",
		Vertices: [3][2]float32{
			{0, s3 / 3 * side},
			{-side / 2, -s3 / 6 * side},
			{side / 2, -s3 / 6 * side},
		},
		Position: [2]float32{x, y},
		Type:     "dynamic",
		Density:  density,
	}
}

// walls encloses a w×h metre box centred at the origin with static
// cuboids just outside its left, right and bottom edges.
func walls(w, h, thickness float32) []BodyConfig {
	t := thickness / 2
	return []BodyConfig{
		{Shape: "cuboid", HalfExtents: [2]float32{t, h / 2}, Position: [2]float32{(w + thickness) / 2, 0}, Type: "static"},
		{Shape: "cuboid", HalfExtents: [2]float32{t, h / 2}, Position: [2]float32{-(w + thickness) / 2, 0}, Type: "static"},
		{Shape: "cuboid", HalfExtents: [2]float32{w / 2, t}, Position: [2]float32{0, -(h + thickness) / 2}, Type: "static"},
	}
}

func pulse(tick uint64, domain int, fx, fy, x, y float32, duration uint64) Event {
	return Event{AtTick: tick, Force: &ForceEvent{
		Domain:   domain,
		Force:    [2]float32{fx, fy},
		Position: [2]float32{x, y},
		Duration: duration,
	}}
}

func preset(name string, fluids []FluidConfig, bodies []BodyConfig, events ...Event) *Config {
	cfg := DefaultConfig()
	cfg.Preset = name
	cfg.Domains = fluids
	cfg.Bodies = bodies
	cfg.Events = events
	return cfg
}

var presets = map[string]func() *Config{
	"water_surface": func() *Config {
		return preset("water_surface",
			[]FluidConfig{fluidAt(128, 64, 0.6, 0, 0)},
			nil,
			pulse(30, 0, 0, -4000, -3, 0.3, 10),
			pulse(120, 0, 3000, 0, 2, -1, 20),
		)
	},
	"solid_body": func() *Config {
		kinematic := cuboid(0.3, 1.6, 4, 0.5, 0)
		kinematic.Type = "kinematic"
		kinematic.Velocity = [2]float32{-0.8, 0}
		static := ball(0.8, -2, -1.2, 0)
		static.Type = "static"
		return preset("solid_body",
			[]FluidConfig{fluidAt(128, 64, 0.9, 0, 0)},
			[]BodyConfig{static, kinematic},
		)
	},
	"rigid_body": func() *Config {
		return preset("rigid_body",
			[]FluidConfig{fluidAt(128, 64, 0.7, 0, 0)},
			[]BodyConfig{
				ball(0.5, 0, 2.5, 300),
				cuboid(0.6, 0.3, -2.5, 2, 600),
				ball(0.3, 2.5, 1, 800),
			},
		)
	},
	"various_shapes": func() *Config {
		bodies := walls(12.8, 6.4, 0.4)
		bodies = append(bodies,
			ball(0.8, -2.5, 2, 200),
			cuboid(1.25, 0.375, 2.5, 0.6, 500),
			cuboid(0.125, 0.125, 0, 0.6, 900),
			cuboid(0.06, 0.25, -5, 0.6, 2000),
			triangle(0.6, 5, 1.9, 1000),
			triangle(0.6, 2.5, 2.5, 1900),
			BodyConfig{Shape: "capsule", HalfHeight: 0.15, Radius: 0.1, Position: [2]float32{-2.5, 0.6}, Type: "dynamic", Density: 8000},
		)
		return preset("various_shapes",
			[]FluidConfig{fluidAt(128, 64, 0.7, 0, 0)},
			bodies,
		)
	},
	"multiple": func() *Config {
		const size = 6.4
		var fluids []FluidConfig
		var events []Event
		for i := 0; i < 4; i++ {
			for j := 0; j < 2; j++ {
				x := float32(i)*size*1.1 - size*1.6
				y := float32(j)*size*1.1 - size*0.8
				f := fluidAt(64, 64, 1, x, y)
				f.Rho = 99.7
				f.Gravity = [2]float32{}
				fluids = append(fluids, f)
				events = append(events, pulse(uint64(10+20*len(events)), len(fluids)-1, 300, 200, x, y, 15))
			}
		}
		return preset("multiple", fluids, nil, events...)
	},
}

// GetPreset returns a fresh copy of the named scene, or nil.
func GetPreset(name string) *Config {
	build, ok := presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
