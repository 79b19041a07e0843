package viewer

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"snowdrift.dev/internal/sim/world"
	"snowdrift.dev/internal/sim/world/io/meshcodec"
	"snowdrift.dev/internal/sim/world/logic/rates"
	"snowdrift.dev/internal/viewerproto"
)

type Server struct {
	world *world.World
	log   *log.Logger

	// AllowRemote serves non-loopback clients too.
	AllowRemote bool
	// MaxMovesPerSecond caps OBSERVER_MOVE per connection, measured in
	// ticks of the world clock. 0 disables the cap.
	MaxMovesPerSecond int

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world:             w,
		log:               logger,
		MaxMovesPerSecond: 120,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 256 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/ground", s.GroundHandler())
	mux.HandleFunc("/v1/metrics", s.MetricsHandler())
	mux.HandleFunc("/v1/viewer", s.WSHandler())
}

func (s *Server) allowed(rw http.ResponseWriter, r *http.Request) bool {
	if s.AllowRemote || isLoopbackRemote(r.RemoteAddr) {
		return true
	}
	http.Error(rw, "forbidden", http.StatusForbidden)
	return false
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(rw, r) {
			return
		}
		t := s.world.Tuning()
		writeJSON(rw, viewerproto.BootstrapResponse{
			ProtocolVersion: viewerproto.Version,
			Tick:            s.world.CurrentTick(),
			WorldParams: viewerproto.WorldParams{
				Seed:            t.Seed,
				ChunkSize:       t.ChunkSize,
				VertexSpacing:   t.VertexSpacing,
				RenderDistance:  t.RenderDistance,
				EvictHysteresis: t.EvictHysteresis,
				TickRateHz:      t.TickRateHz,
				NoiseBackend:    t.Noise.Backend,
				MeshEncoding:    meshcodec.Encoding,
			},
		})
	}
}

// GroundHandler answers height queries for collision collaborators. It reads
// the immutable sampler directly and never waits on the world loop.
func (s *Server) GroundHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(rw, r) {
			return
		}
		x, errX := parseCoord(r.URL.Query().Get("x"))
		z, errZ := parseCoord(r.URL.Query().Get("z"))
		if errX != nil || errZ != nil {
			http.Error(rw, "x and z must be finite numbers", http.StatusBadRequest)
			return
		}
		sm := s.world.Sampler()
		wx, wz := float64(x), float64(z)
		writeJSON(rw, viewerproto.GroundResponse{
			X:      x,
			Z:      z,
			Height: sm.SampleHeight(x, z),
			Normal: sm.SampleNormal(x, z),
			Biome:  sm.Biome(wx, wz).String(),
			Blend:  sm.Blend(wx, wz),
			Tree:   sm.ShouldSpawn(wx, wz),
		})
	}
}

func (s *Server) MetricsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(rw, r) {
			return
		}
		writeJSON(rw, s.world.Metrics())
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(rw, r) {
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub viewerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad subscribe")
			return
		}
		if sub.Type != viewerproto.TypeSubscribe || sub.ProtocolVersion != viewerproto.Version {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		sid := "V-" + uuid.NewString()
		out := make(chan []byte, 4096)
		select {
		case s.world.ViewerJoin() <- world.ViewerJoinRequest{SessionID: sid, Name: sub.Name, Out: out}:
		default:
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		defer s.leave(sid)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: controlling viewers may move the observer.
		moves := rates.Window{Window: uint64(s.world.Tuning().TickRateHz), Max: s.MaxMovesPerSecond}
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var env viewerproto.Envelope
			if err := json.Unmarshal(msg, &env); err != nil || env.ProtocolVersion != viewerproto.Version {
				continue
			}
			if env.Type != viewerproto.TypeObserverMove || !sub.Controls {
				continue
			}
			var mv viewerproto.ObserverMoveMsg
			if err := json.Unmarshal(msg, &mv); err != nil || !finite(mv.Pos) {
				continue
			}
			if !moves.Allow(s.world.CurrentTick()) {
				continue
			}
			select {
			case s.world.ObserverMove() <- world.ObserverMoveRequest{Pos: mgl32.Vec3(mv.Pos)}:
			default:
				// Drop moves under load; the client sends its position again.
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// leave blocks until the world loop accepts the leave or has stopped.
func (s *Server) leave(sid string) {
	select {
	case s.world.ViewerLeave() <- sid:
	case <-s.world.Done():
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func parseCoord(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return float32(v), nil
}

func finite(p [3]float32) bool {
	for _, v := range p {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
