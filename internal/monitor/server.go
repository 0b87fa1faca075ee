package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loramesh/lorax/internal/neighbor"
	"github.com/loramesh/lorax/internal/telemetry"
	"github.com/loramesh/lorax/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

// SnapshotSource supplies the latest neighbor table copy.
type SnapshotSource interface {
	Snapshot() *neighbor.Snapshot
}

// Server is the HTTP status endpoint.
type Server struct {
	bus  *Bus
	src  SnapshotSource
	addr string
}

// NewServer creates a status server for addr.
func NewServer(addr string, bus *Bus, src SnapshotSource) *Server {
	return &Server{bus: bus, src: src, addr: addr}
}

// Handler returns the mux serving /healthz, /metrics, /neighbors and /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok\n")); err != nil {
			util.LogDebug("monitor: healthz write failed: %v", err)
		}
	})
	mux.Handle("/metrics", telemetry.MetricsHandler())
	mux.HandleFunc("/neighbors", s.handleNeighbors)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			util.LogDebug("monitor: shutdown: %v", err)
		}
	}()

	util.LogInfo("monitor listening on http://%s", listener.Addr())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	if snap == nil {
		http.Error(w, "relay not started", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		util.LogDebug("monitor: encoding neighbors failed: %v", err)
	}
}

// handleWS streams bus events as JSON until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogDebug("monitor: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	// Reader goroutine notices the close frame.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				util.LogDebug("monitor: websocket deadline: %v", err)
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				util.LogDebug("monitor: websocket write failed: %v", err)
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
