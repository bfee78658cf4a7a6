package sim

import (
	"context"

	"github.com/san-kum/eulerfluid/internal/config"
	"golang.org/x/sync/errgroup"
)

// Split returns one single-domain config per domain of cfg. Force events go
// to the domain they target; bodies and spawns are copied into every one.
func Split(cfg *config.Config) ([]*config.Config, error) {
	scenario, err := cfg.Scenario()
	if err != nil {
		return nil, err
	}

	out := make([]*config.Config, len(cfg.Domains))
	for i, d := range cfg.Domains {
		c := *cfg
		c.Domains = []config.FluidConfig{d}
		c.Bodies = append([]config.BodyConfig(nil), cfg.Bodies...)
		c.Run.Scenario = ""
		c.Events = nil
		for _, e := range scenario.Events {
			switch {
			case e.Force != nil:
				if e.Force.Domain != i {
					continue
				}
				f := *e.Force
				f.Domain = 0
				c.Events = append(c.Events, config.Event{AtTick: e.AtTick, Force: &f})
			case e.Spawn != nil:
				b := *e.Spawn
				c.Events = append(c.Events, config.Event{AtTick: e.AtTick, Spawn: &b})
			}
		}
		out[i] = &c
	}
	return out, nil
}

// RunDomains runs every domain of cfg as an independent scene, each on its
// own device and host world, concurrently. Samples carry the index of the
// domain in cfg. Observers passed in opts are shared by all runs and must
// be safe for concurrent use.
func RunDomains(ctx context.Context, cfg *config.Config, ticks int, opts ...Option) ([]*Result, error) {
	cfgs, err := Split(cfg)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(cfgs))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range cfgs {
		g.Go(func() error {
			s, err := New(c, opts...)
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := s.Run(ctx, ticks)
			if r != nil {
				for k := range r.Samples {
					r.Samples[k].Domain = uint32(i)
				}
			}
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
