// Package server exposes the ingest worker and the push supervisor over a
// small HTTP API and mirrors their events to WebSocket clients.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/rtsptool/rtsptool/internal/events"
	"github.com/rtsptool/rtsptool/internal/ingest"
	"github.com/rtsptool/rtsptool/internal/push"
	"github.com/rtsptool/rtsptool/internal/util"
)

// Puller is the part of ingest.Worker the API drives.
type Puller interface {
	Configure(url string, transport ingest.Transport) error
	Start() error
	Stop()
	Running() bool
	Source() (ingest.StreamSource, bool)
	Stats() ingest.Stats
}

// Pusher is the part of push.Supervisor the API drives.
type Pusher interface {
	StartPush(input, output string) error
	StopPush() error
	Job() (push.Job, bool)
}

// Server exposes pull and push control over HTTP and mirrors their events
// to WebSocket clients.
type Server struct {
	port   int
	puller Puller
	pusher Pusher
	feed   *events.Broadcaster[Message]
	logger *slog.Logger
}

func NewServer(port int, puller Puller, pusher Pusher) *Server {
	return &Server{
		port:   port,
		puller: puller,
		pusher: pusher,
		feed:   events.NewBroadcaster[Message](),
		logger: util.ComponentLogger("server"),
	}
}

// Handler returns the routes of the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/pull/start", s.handlePullStart)
	mux.HandleFunc("/api/pull/stop", s.handlePullStop)
	mux.HandleFunc("/api/pull/status", s.handlePullStatus)
	mux.HandleFunc("/api/push/start", s.handlePushStart)
	mux.HandleFunc("/api/push/stop", s.handlePushStop)
	mux.HandleFunc("/api/push/status", s.handlePushStatus)

	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// URL is where the API is reachable locally.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", "port", s.port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.feed.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "listening on port %d", s.port)
	case <-ctx.Done():
	}

	s.logger.Info("Stopping API server")
	s.feed.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down API server")
	}
	return nil
}

// Publish sends msg to every WebSocket client.
func (s *Server) Publish(msg Message) {
	s.feed.Broadcast(msg)
}

// ForwardIngest publishes ingest events until ch is closed or ctx ends.
func (s *Server) ForwardIngest(ctx context.Context, ch <-chan ingest.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if msg, ok := IngestMessage(e); ok {
				s.Publish(msg)
			}
		}
	}
}

// ForwardPush publishes push events until ch is closed or ctx ends.
func (s *Server) ForwardPush(ctx context.Context, ch <-chan push.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if msg, ok := PushMessage(e); ok {
				s.Publish(msg)
			}
		}
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		util.GetLogger().Warn("Failed to encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, statusCode int, err error) {
	respondJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}
