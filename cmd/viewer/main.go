package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"snowdrift.dev/internal/sim/tuning"
	"snowdrift.dev/internal/viewerproto"
)

func main() {
	var (
		addr       = flag.String("addr", "localhost:8080", "server host:port")
		name       = flag.String("name", "viewer", "viewer name")
		stepTicks  = flag.Int("step_ticks", 10, "advance the observer one chunk along +x every N ticks")
		maxTicks   = flag.Uint64("ticks", 0, "exit after this many ticks (0 = run until interrupted)")
		tuningPath = flag.String("tuning", "", "tuning.yaml of the server; enables digest checks against local generation")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[viewer] ", log.LstdFlags|log.Lmicroseconds)

	boot, err := fetchBootstrap("http://" + *addr + "/v1/bootstrap")
	if err != nil {
		logger.Fatalf("bootstrap: %v", err)
	}
	wp := boot.WorldParams
	logger.Printf("world seed=%d chunk=%d spacing=%g render_distance=%d encoding=%s",
		wp.Seed, wp.ChunkSize, wp.VertexSpacing, wp.RenderDistance, wp.MeshEncoding)

	s := newSession(wp, logger)
	if *tuningPath != "" {
		tune, err := tuning.Load(*tuningPath)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		if err := s.enableLocalDigests(tune); err != nil {
			logger.Fatalf("local generation: %v", err)
		}
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+*addr+"/v1/viewer", nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := viewerproto.SubscribeMsg{
		Type:            viewerproto.TypeSubscribe,
		ProtocolVersion: viewerproto.Version,
		Name:            *name,
		Controls:        true,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}
	if err := conn.WriteJSON(s.moveMsg()); err != nil {
		logger.Fatalf("send OBSERVER_MOVE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			s.summary()
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			s.summary()
			return
		}
		tick, err := s.handle(msg)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		if tick == nil {
			continue
		}
		if *maxTicks != 0 && s.ticks >= *maxTicks {
			s.summary()
			return
		}
		if *stepTicks > 0 && s.ticks%uint64(*stepTicks) == 0 {
			s.advance()
			if err := conn.WriteJSON(s.moveMsg()); err != nil {
				logger.Fatalf("send OBSERVER_MOVE: %v", err)
			}
		}
	}
}

func fetchBootstrap(url string) (viewerproto.BootstrapResponse, error) {
	var out viewerproto.BootstrapResponse
	c := &http.Client{Timeout: 5 * time.Second}
	res, err := c.Get(url)
	if err != nil {
		return out, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return out, fmt.Errorf("status %s", res.Status)
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return out, err
	}
	if out.ProtocolVersion != viewerproto.Version {
		return out, fmt.Errorf("protocol %q, want %q", out.ProtocolVersion, viewerproto.Version)
	}
	return out, nil
}
