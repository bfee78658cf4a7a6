package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/sim"
	"github.com/san-kum/eulerfluid/internal/stream"
	"github.com/spf13/cobra"
)

// maxCatchUp bounds the ticks run per frame after a stall.
const maxCatchUp = 4

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	every := max(streamEvery, 1)

	var s *sim.Simulator
	srv := stream.NewServer(
		stream.WithArrows(func(ctx context.Context, id fluid.DomainID, bin int) ([]kernels.Arrow, error) {
			return s.Fluid().VelocityArrows(ctx, id, bin)
		}, binSize),
		stream.WithForceSink(func(id fluid.DomainID, f kernels.LocalForce) error {
			return s.Fluid().AddForce(id, f)
		}),
	)
	s, err = sim.New(cfg, sim.WithObserver(srv))
	if err != nil {
		return err
	}
	defer s.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", srv.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "eulerfluid %s: %d domain(s), %d client(s), websocket at /ws\n",
			presetName(cfg), len(cfg.Domains), srv.Clients())
	})
	httpServer := &http.Server{Addr: addr, Handler: mux}

	ctx := cmd.Context()
	errc := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	fmt.Printf("streaming %s on ws://%s/ws\n", presetName(cfg), addr)

	err = stepRealtime(ctx, s, every, cmd.Flags().Changed("ticks"), cfg.Run.Ticks, errc)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); err == nil {
		err = serr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// stepRealtime advances the scene at its physics rate and samples every
// nth tick, which broadcasts it to the observers. With limited set it stops
// after ticks ticks.
func stepRealtime(ctx context.Context, s *sim.Simulator, every int, limited bool, ticks int, errc <-chan error) error {
	s.Prepare()
	clock := s.Clock()
	period := time.Duration(float64(clock.Dt()) * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case now := <-ticker.C:
			due := min(clock.Advance(now.Sub(last)), maxCatchUp)
			last = now
			for range due {
				t, err := s.Step(ctx)
				if err != nil {
					return err
				}
				if t.Number%uint64(every) == 0 {
					if _, err := s.Sample(t); err != nil {
						return err
					}
				}
				if limited && int(t.Number) >= ticks {
					return nil
				}
			}
		}
	}
}
