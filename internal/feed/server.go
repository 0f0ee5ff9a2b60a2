// Package feed serves the live snapshot over HTTP and websocket so presentation
// layers other than the terminal dashboard can follow a session.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/impact-insoles/insole-app/internal/app"
	"github.com/impact-insoles/insole-app/internal/go_func_utils"
)

const snapshotBuffer = 16

// Server exposes GET /api/state and GET /ws
type Server struct {
	logger      *log.Logger
	model       *app.Model
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	unregister func()
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewServer creates a feed for model; nothing is served until Start
func NewServer(logger *log.Logger, model *app.Model, throttle time.Duration) *Server {
	if logger == nil {
		panic("Server: logger cannot be nil")
	}
	if model == nil {
		panic("Server: model cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:      logger,
		model:       model,
		broadcaster: NewBroadcaster(logger, throttle),
		ctx:         ctx,
		cancel:      cancel,
	}
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /ws", s.handleWS)
}

// Start listens on addr and begins forwarding snapshots. Returns the bound address.
func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.listener = listener

	snapshots := make(chan app.Snapshot, snapshotBuffer)
	s.unregister = s.model.ListenToSnapshot(snapshots)

	s.wg.Add(2)
	go_func_utils.SafeGo(s.logger, "feed forwarder", func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case snapshot := <-snapshots:
				s.broadcaster.Queue(snapshot)
			}
		}
	})
	go_func_utils.SafeGo(s.logger, "feed http", func() {
		defer s.wg.Done()
		s.logger.Printf("Server: feed listening on http://%s", listener.Addr())
		if err := s.httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server: serve error: %v", err)
		}
	})
	return listener.Addr().String(), nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.model.GetSnapshot()); err != nil {
		s.logger.Printf("Server: encode state: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("Server: ws upgrade error: %v", err)
		return
	}

	s.logger.Printf("Server: websocket client connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn, s.model.GetSnapshot())

	go_func_utils.SafeGo(s.logger, "feed reader", func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			s.logger.Printf("Server: websocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// Shutdown stops serving and disconnects every client
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Println("Server: Shutting down")
	if s.unregister != nil {
		s.unregister()
	}
	s.cancel()
	var err error
	if s.listener != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.broadcaster.Close()
	s.wg.Wait()
	s.logger.Println("Server: Shutdown complete")
	return err
}
