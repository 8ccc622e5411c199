// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package web serves the node's latest reading over HTTP and a websocket
// stream, next to the Prometheus endpoint.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/climate_node/internal/env"
)

const (
	writeWait = 5 * time.Second
	sendQueue = 4
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local network only
	},
}

// Reading is the latest published sample tagged with the node's source label.
type Reading struct {
	Source string `json:"source"`
	env.Sample
}

// Status reports the last failure seen by the node, if any.
type Status struct {
	Source      string     `json:"source"`
	HaveReading bool       `json:"have_reading"`
	LastError   string     `json:"last_error,omitempty"`
	LastStage   string     `json:"last_stage,omitempty"`
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`
}

// client is one websocket subscriber. Readings queue on send and are
// written by the client's own goroutine.
type client struct {
	conn *websocket.Conn
	send chan Reading
}

func (c *client) writePump() {
	failed := false
	for r := range c.send {
		if failed {
			continue
		}
		if err := writeReading(c.conn, r); err != nil {
			log.Debugf("web: dropping websocket client: %v", err)
			failed = true
			c.conn.Close()
		}
	}
}

// Server keeps the latest reading and pushes every new one to websocket
// clients.
type Server struct {
	Addr    string
	source  string
	metrics http.Handler

	mu      sync.Mutex
	last    Reading
	have    bool
	status  Status
	clients map[*client]struct{}
}

// New returns a Server for addr. metrics may be nil.
func New(addr, source string, metrics http.Handler) *Server {
	return &Server{
		Addr:    addr,
		source:  source,
		metrics: metrics,
		status:  Status{Source: source},
		clients: make(map[*client]struct{}),
	}
}

// ObserveSample stores s and queues it for every websocket client. It never
// waits on a client; a client whose queue is full misses the reading.
func (s *Server) ObserveSample(sample env.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = Reading{Source: s.source, Sample: sample}
	s.have = true
	s.status.HaveReading = true

	for c := range s.clients {
		select {
		case c.send <- s.last:
		default:
			log.Debug("web: websocket client is behind, skipping reading")
		}
	}
}

// ObserveFailure records err as the last failure.
func (s *Server) ObserveFailure(stage string, err error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastStage = stage
	s.status.LastError = err.Error()
	s.status.LastErrorAt = &now
}

// Handler returns the routes of the status server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/reading", s.handleReading)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("web: shutdown: %v", err)
		}
		s.closeClients()
	}()

	log.Infof("web: status server listening on %s", s.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "web: listen")
	}
	return nil
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reading, have := s.last, s.have
	s.mu.Unlock()

	if !have {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, reading)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()
	writeJSON(w, status)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("web: websocket upgrade error: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan Reading, sendQueue)}
	go c.writePump()

	// The current reading is queued before the client becomes visible to
	// ObserveSample, so it always arrives first.
	s.mu.Lock()
	if s.have {
		c.send <- s.last
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	log.Debugf("web: websocket client connected from %s", r.RemoteAddr)

	// Drain until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("web: websocket error: %v", err)
			}
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, c)
	close(c.send)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.Close()
	}
}

func writeReading(conn *websocket.Conn, r Reading) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(r)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("web: json encode error: %v", err)
	}
}
