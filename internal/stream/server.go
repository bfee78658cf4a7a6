// Package stream broadcasts simulation frames to websocket clients and
// forwards their drag forces back into the fluid.
package stream

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"
	"github.com/san-kum/eulerfluid/internal/fluid"
	"github.com/san-kum/eulerfluid/internal/kernels"
	"github.com/san-kum/eulerfluid/internal/sim"
	"github.com/san-kum/eulerfluid/internal/storage"
	"github.com/san-kum/eulerfluid/internal/viz"
)

const defaultWriteTimeout = 2 * time.Second

// ArrowSource computes the velocity overlay of a domain.
type ArrowSource func(ctx context.Context, id fluid.DomainID, binSize int) ([]kernels.Arrow, error)

// ForceSink receives point forces sent by clients.
type ForceSink func(id fluid.DomainID, f kernels.LocalForce) error

type ArrowMessage struct {
	X  float32 `json:"x"`
	Y  float32 `json:"y"`
	Vx float32 `json:"vx"`
	Vy float32 `json:"vy"`
}

// FrameMessage is the JSON sent for every observed frame. Cells holds one
// viz.CellKind per grid cell, row-major from the bottom row.
type FrameMessage struct {
	Type    string         `json:"type"`
	Tick    uint64         `json:"tick"`
	Dt      float32        `json:"dt"`
	Domain  uint32         `json:"domain"`
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Dx      float32        `json:"dx"`
	Cells   []int          `json:"cells"`
	BinSize int            `json:"bin_size,omitempty"`
	Arrows  []ArrowMessage `json:"arrows,omitempty"`
	Sample  storage.Sample `json:"sample"`
}

// ClientMessage is what clients may send. Only "force" is understood:
// a point force in newtons applied at a world position.
type ClientMessage struct {
	Type   string  `json:"type"`
	Domain uint32  `json:"domain"`
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Fx     float32 `json:"fx"`
	Fy     float32 `json:"fy"`
}

type Option func(*Server)

// WithArrows adds a velocity overlay of binSize blocks to every frame.
func WithArrows(src ArrowSource, binSize int) Option {
	return func(s *Server) {
		s.arrows = src
		s.binSize = binSize
	}
}

func WithForceSink(sink ForceSink) Option     { return func(s *Server) { s.sink = sink } }
func WithLogger(l *slog.Logger) Option        { return func(s *Server) { s.logger = l } }
func WithWriteTimeout(d time.Duration) Option { return func(s *Server) { s.writeTimeout = d } }

// Server fans frames out to every connected client. It implements
// sim.Observer.
type Server struct {
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex

	lastMu sync.RWMutex
	last   *FrameMessage

	arrows       ArrowSource
	binSize      int
	sink         ForceSink
	logger       *slog.Logger
	writeTimeout time.Duration
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:      make(map[*websocket.Conn]*sync.Mutex),
		logger:       fluid.Logger(),
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Handler upgrades requests to websocket connections. A new client first
// receives the latest frame, then every broadcast until it disconnects.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleWebSocket)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connMu := &sync.Mutex{}
	s.clientsMu.Lock()
	s.clients[conn] = connMu
	s.clientsMu.Unlock()
	defer s.remove(conn)
	s.logger.Info("client connected", "remote", r.RemoteAddr)

	s.lastMu.RLock()
	last := s.last
	s.lastMu.RUnlock()
	if last != nil {
		if err := s.write(conn, connMu, last); err != nil {
			return
		}
	}

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		s.handle(msg)
	}
}

func (s *Server) handle(msg ClientMessage) {
	if msg.Type != "force" {
		s.logger.Debug("ignoring client message", "type", msg.Type)
		return
	}
	if s.sink == nil {
		return
	}
	f := kernels.LocalForce{
		Force:    mgl32.Vec2{msg.Fx, msg.Fy},
		Position: mgl32.Vec2{msg.X, msg.Y},
	}
	if err := s.sink(fluid.DomainID(msg.Domain), f); err != nil {
		s.logger.Warn("client force rejected", "domain", msg.Domain, "error", err)
	}
}

func (s *Server) remove(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
}

func (s *Server) write(conn *websocket.Conn, mu *sync.Mutex, v any) error {
	mu.Lock()
	defer mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteJSON(v)
}

// Broadcast sends msg to every client. Clients whose write fails are
// closed and dropped.
func (s *Server) Broadcast(msg *FrameMessage) {
	s.lastMu.Lock()
	s.last = msg
	s.lastMu.Unlock()

	s.clientsMu.RLock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(s.clients))
	for conn, mu := range s.clients {
		targets[conn] = mu
	}
	s.clientsMu.RUnlock()

	var failed []*websocket.Conn
	for conn, mu := range targets {
		if err := s.write(conn, mu, msg); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		s.remove(conn)
		conn.Close()
	}
}

// OnFrame encodes a simulation frame and broadcasts it.
func (s *Server) OnFrame(f sim.Frame) {
	msg := Encode(f)
	if s.arrows != nil {
		arrows, err := s.arrows(context.Background(), f.Domain, s.binSize)
		if err != nil {
			s.logger.Warn("velocity overlay failed", "domain", f.Domain, "error", err)
		} else {
			msg.BinSize = s.binSize
			msg.Arrows = make([]ArrowMessage, len(arrows))
			for i, a := range arrows {
				msg.Arrows[i] = ArrowMessage{X: a.Position.X(), Y: a.Position.Y(), Vx: a.Velocity.X(), Vy: a.Velocity.Y()}
			}
		}
	}
	s.Broadcast(msg)
}

// Encode converts a frame to its wire form. Non-finite telemetry values,
// which JSON cannot carry, are sent as 0.
func Encode(f sim.Frame) *FrameMessage {
	msg := &FrameMessage{
		Type:   "frame",
		Tick:   f.Tick.Number,
		Dt:     f.Tick.Dt,
		Domain: uint32(f.Domain),
		Sample: finiteSample(f.Sample),
	}
	if fields := f.Fields; fields != nil {
		msg.Width = fields.Width
		msg.Height = fields.Height
		msg.Dx = fields.Dx
		msg.Cells = make([]int, 0, fields.Width*fields.Height)
		for j := 0; j < fields.Height; j++ {
			for i := 0; i < fields.Width; i++ {
				msg.Cells = append(msg.Cells, int(viz.Classify(fields, i, j)))
			}
		}
	}
	return msg
}

func finiteSample(s storage.Sample) storage.Sample {
	for _, v := range []*float64{&s.Time, &s.Fx, &s.Fy, &s.Torque, &s.MaxDivergence, &s.FluidVolume, &s.SurfaceMean, &s.SurfaceStd, &s.StepMillis} {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = 0
		}
	}
	return s
}

var _ sim.Observer = (*Server)(nil)
