// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const datapoint = `{"metric":"temperature","timestamp":1700000000,"value":21.9,"tags":{"source":"chambre_parents","sensor":"AM2320"}}`

// tsdb is an /api/put endpoint answering with the queued status codes.
type tsdb struct {
	mu       sync.Mutex
	statuses []int
	bodies   []string
	types    []string
}

func (s *tsdb) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, string(body))
	s.types = append(s.types, r.Header.Get("Content-Type"))
	status := http.StatusNoContent
	if len(s.statuses) > 0 {
		status, s.statuses = s.statuses[0], s.statuses[1:]
	}
	w.WriteHeader(status)
}

func (s *tsdb) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies...)
}

func newTestForwarder(url string) *Forwarder {
	f := NewForwarder(url)
	f.Delay = time.Millisecond
	return f
}

func TestForwardPostsRecordUnchanged(t *testing.T) {
	db := &tsdb{}
	srv := httptest.NewServer(db)
	defer srv.Close()

	if err := newTestForwarder(srv.URL+"/api/put").Forward(context.Background(), []byte(datapoint)); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	reqs := db.requests()
	if len(reqs) != 1 || reqs[0] != datapoint {
		t.Fatalf("requests = %q", reqs)
	}
	if db.types[0] != "application/json" {
		t.Errorf("content type = %q", db.types[0])
	}
}

func TestForwardStatusHandling(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		wantErr  bool
		requests int
	}{
		{"ok", []int{http.StatusOK}, false, 1},
		{"rejected", []int{http.StatusBadRequest}, true, 1},
		{"recovers", []int{http.StatusServiceUnavailable, http.StatusNoContent}, false, 2},
		{"unavailable", []int{500, 502, 503}, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &tsdb{statuses: tt.statuses}
			srv := httptest.NewServer(db)
			defer srv.Close()

			err := newTestForwarder(srv.URL).Forward(context.Background(), []byte(datapoint))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if n := len(db.requests()); n != tt.requests {
				t.Errorf("requests = %d, want %d", n, tt.requests)
			}
		})
	}
}

func TestForwardDropsInvalidPayload(t *testing.T) {
	db := &tsdb{}
	srv := httptest.NewServer(db)
	defer srv.Close()

	for _, payload := range []string{"garbage", `{"value":3}`, `{"metric":"temperature","value":3}`} {
		if err := newTestForwarder(srv.URL).Forward(context.Background(), []byte(payload)); err == nil {
			t.Errorf("%q: expected error", payload)
		}
	}
	if n := len(db.requests()); n != 0 {
		t.Errorf("invalid payloads reached TSDB %d times", n)
	}
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func TestHandleForwardsMessage(t *testing.T) {
	db := &tsdb{}
	srv := httptest.NewServer(db)
	defer srv.Close()

	handle := newTestForwarder(srv.URL).Handle(context.Background())
	handle(nil, fakeMessage{topic: "sensors", payload: []byte(datapoint)})
	handle(nil, fakeMessage{topic: "sensors", payload: []byte("not a record")})

	if reqs := db.requests(); len(reqs) != 1 || reqs[0] != datapoint {
		t.Errorf("requests = %q", reqs)
	}
}
