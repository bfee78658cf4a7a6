package stream

import (
	"context"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/san-kum/eulerfluid/internal/config"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/sim"
	"github.com/san-kum/eulerfluid/internal/storage"
	"github.com/san-kum/eulerfluid/internal/viz"
)

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func waitClients(t *testing.T, srv *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for srv.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, srv.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcast(t *testing.T) {
	srv := NewServer()
	conn := dial(t, srv)
	waitClients(t, srv, 1)

	srv.Broadcast(&FrameMessage{Type: "frame", Tick: 7, Domain: 1})

	var got FrameMessage
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Tick != 7 || got.Domain != 1 {
		t.Errorf("expected tick 7 domain 1, got %+v", got)
	}
}

func TestLateClientReceivesLastFrame(t *testing.T) {
	srv := NewServer()
	srv.Broadcast(&FrameMessage{Type: "frame", Tick: 3})
	srv.Broadcast(&FrameMessage{Type: "frame", Tick: 4})

	conn := dial(t, srv)
	var got FrameMessage
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Tick != 4 {
		t.Errorf("expected latest tick 4, got %d", got.Tick)
	}
}

func TestClientDisconnect(t *testing.T) {
	srv := NewServer()
	conn := dial(t, srv)
	waitClients(t, srv, 1)

	conn.Close()
	waitClients(t, srv, 0)
}

func TestForceForwarded(t *testing.T) {
	type received struct {
		id fluid.DomainID
		f  kernels.LocalForce
	}
	forces := make(chan received, 1)
	srv := NewServer(WithForceSink(func(id fluid.DomainID, f kernels.LocalForce) error {
		forces <- received{id, f}
		return nil
	}))
	conn := dial(t, srv)

	if err := conn.WriteJSON(ClientMessage{Type: "hello"}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(ClientMessage{Type: "force", Domain: 2, X: 0.5, Y: 1, Fx: 10, Fy: -3}); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-forces:
		if r.id != 2 {
			t.Errorf("expected domain 2, got %d", r.id)
		}
		if r.f.Force.X() != 10 || r.f.Force.Y() != -3 {
			t.Errorf("expected force (10, -3), got %v", r.f.Force)
		}
		if r.f.Position.X() != 0.5 || r.f.Position.Y() != 1 {
			t.Errorf("expected position (0.5, 1), got %v", r.f.Position)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected force to reach the sink")
	}
}

func TestEncode(t *testing.T) {
	w, h := 2, 3
	f := &fluid.Fields{
		Width:         w,
		Height:        h,
		Dx:            0.25,
		U:             make([]float32, (w+1)*h),
		V:             make([]float32, w*(h+1)),
		LevelsetAir:   make([]float32, w*h),
		LevelsetSolid: make([]float32, w*h),
	}
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			k := f.Cell(i, j)
			f.LevelsetAir[k] = float32(j) - 0.5
			f.LevelsetSolid[k] = 10
		}
	}
	f.LevelsetSolid[f.Cell(1, 2)] = -1

	msg := Encode(sim.Frame{
		Tick:   fluid.Tick{Number: 12, Dt: 1.0 / 60},
		Domain: 3,
		Fields: f,
		Sample: storage.Sample{Tick: 12, Fy: 4, SurfaceStd: math.NaN(), Torque: math.Inf(1)},
	})

	if msg.Type != "frame" || msg.Tick != 12 || msg.Domain != 3 {
		t.Errorf("unexpected header %+v", msg)
	}
	if msg.Width != w || msg.Height != h || msg.Dx != 0.25 {
		t.Errorf("expected %dx%d dx 0.25, got %dx%d dx %f", w, h, msg.Width, msg.Height, msg.Dx)
	}

	expected := []viz.CellKind{
		viz.KindSurface, viz.KindSurface,
		viz.KindAir, viz.KindAir,
		viz.KindAir, viz.KindSolid,
	}
	if len(msg.Cells) != len(expected) {
		t.Fatalf("expected %d cells, got %d", len(expected), len(msg.Cells))
	}
	for k, want := range expected {
		if msg.Cells[k] != int(want) {
			t.Errorf("cell %d: expected kind %d, got %d", k, want, msg.Cells[k])
		}
	}

	if msg.Sample.SurfaceStd != 0 || msg.Sample.Torque != 0 {
		t.Errorf("expected non-finite values zeroed, got %+v", msg.Sample)
	}
	if msg.Sample.Fy != 4 {
		t.Errorf("expected fy 4, got %f", msg.Sample.Fy)
	}
}

func TestSimulationStream(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Domains[0].Width = 16
	cfg.Domains[0].Height = 16
	cfg.Domains[0].InitialFluidLevel = 0.5
	cfg.Solver.JacobiIterations = 4
	cfg.Solver.Backend = "serial"

	var s *sim.Simulator
	srv := NewServer(WithArrows(func(ctx context.Context, id fluid.DomainID, binSize int) ([]kernels.Arrow, error) {
		return s.Fluid().VelocityArrows(ctx, id, binSize)
	}, 4))
	s, err := sim.New(cfg, sim.WithObserver(srv))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	conn := dial(t, srv)
	waitClients(t, srv, 1)

	if _, err := s.Run(context.Background(), 2); err != nil {
		t.Fatal(err)
	}

	for tick := uint64(1); tick <= 2; tick++ {
		var got FrameMessage
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatal(err)
		}
		if got.Tick != tick {
			t.Errorf("expected tick %d, got %d", tick, got.Tick)
		}
		if len(got.Cells) != 16*16 {
			t.Errorf("expected 256 cells, got %d", len(got.Cells))
		}
		if got.BinSize != 4 || len(got.Arrows) != 16 {
			t.Errorf("expected 16 arrows of bin 4, got %d of bin %d", len(got.Arrows), got.BinSize)
		}
		if got.Sample.FluidVolume <= 0 {
			t.Errorf("expected fluid volume, got %f", got.Sample.FluidVolume)
		}
	}
}
