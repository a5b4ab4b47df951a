// Package server exposes the live update websocket over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	c "github.com/life-stream-dev/life-stream-go-live-broker/internal/config"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/connection"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/database"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/utils"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	manager   *connection.ConnectionManager
	snapshots database.SnapshotSource
	auth      *Authenticator
	opts      connection.Options
	upgrader  websocket.Upgrader
	http      *http.Server
}

// OptionsFromConfig converts the live section of the configuration into connection options.
func OptionsFromConfig(config c.LiveConfig) (connection.Options, error) {
	opts := connection.Options{SendBuffer: config.SendBuffer, ReadLimit: config.ReadLimit}
	var err error
	if opts.WriteTimeout, err = utils.ParseDuration(config.WriteTimeout); err != nil {
		return opts, err
	}
	if opts.PongTimeout, err = utils.ParseDuration(config.PongTimeout); err != nil {
		return opts, err
	}
	return opts, nil
}

func NewServer(config c.LiveConfig, manager *connection.ConnectionManager, snapshots database.SnapshotSource, auth *Authenticator, opts connection.Options) *Server {
	s := &Server{
		manager:   manager,
		snapshots: snapshots,
		auth:      auth,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc(config.SocketPath, s.handleSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.http = &http.Server{
		Addr:              config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.auth.Viewer(r)
	if err != nil {
		logger.WarnF("[%s] Rejecting websocket upgrade, details: %v", r.RemoteAddr, err)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnF("[%s] Fail to upgrade connection, details: %v", r.RemoteAddr, err)
		return
	}
	logger.DebugF("[%s] Accepted websocket for viewer %d", r.RemoteAddr, viewer)
	connection.NewLiveConnection(viewer, conn, s.manager, s.snapshots, s.opts).Serve(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{
		"connections": s.manager.Count(),
		"viewers":     s.manager.ViewerCount(),
	})
}

// Run serves until ctx is cancelled, then shuts the listener down gracefully. Hijacked
// websocket connections are closed by the connection manager.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	logger.InfoF("Live Server Listen On %s", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logger.ErrorF("Server close error: %v", err)
		return err
	}
	logger.Info("Live Server stopped")
	return nil
}
