// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/relabs-tech/climate_node/internal/config"
	"github.com/relabs-tech/climate_node/internal/env"
	"github.com/relabs-tech/climate_node/internal/metric"
	"github.com/relabs-tech/climate_node/internal/metrics"
	"github.com/relabs-tech/climate_node/internal/network"
	"github.com/relabs-tech/climate_node/internal/transport"
)

type fakeSensor struct {
	mu    sync.Mutex
	name  string
	raw   env.Sample
	errs  []error // consumed one per read; nil entries succeed
	panic bool
}

func (f *fakeSensor) Name() string { return f.name }

func (f *fakeSensor) Read() (env.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic {
		panic("bus wedged")
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return env.Sample{}, err
		}
	}
	return f.raw, nil
}

type published struct {
	topic   string
	payload []byte
}

// fakeBroker records every client dialed against it.
type fakeBroker struct {
	mu          sync.Mutex
	dials       [][2]string
	connectErr  error
	failPublish int // 1-based publish index that fails, 0 never
	publishes   []published
	disconnects int
}

func (b *fakeBroker) dialer() transport.Dialer {
	return func(clientID, broker string) transport.Client {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.dials = append(b.dials, [2]string{clientID, broker})
		return &fakeClient{broker: b}
	}
}

func (b *fakeBroker) snapshot() ([]published, int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.publishes...), len(b.dials), b.disconnects
}

type fakeClient struct {
	broker *fakeBroker
	n      int
}

func (c *fakeClient) Connect() error {
	return c.broker.connectErr
}

func (c *fakeClient) Publish(topic string, payload []byte) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.n++
	if c.n == c.broker.failPublish {
		return errors.New("connection reset")
	}
	c.broker.publishes = append(c.broker.publishes, published{topic, payload})
	return nil
}

func (c *fakeClient) Disconnect() {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.disconnects++
}

type fakeStation struct {
	mu        sync.Mutex
	connected bool
	connects  int
}

func (f *fakeStation) Active(bool) error { return nil }

func (f *fakeStation) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeStation) Connect(string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return nil
}

func (f *fakeStation) IfConfig() (network.IfConfig, error) { return network.IfConfig{}, nil }

type fakeSync struct{ err error }

func (f fakeSync) Sync() error { return f.err }

type recorder struct {
	mu       sync.Mutex
	samples  []env.Sample
	failures []string
}

func (r *recorder) ObserveSample(s env.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *recorder) ObserveFailure(stage string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, stage)
}

type harness struct {
	node    *Node
	sensor  *fakeSensor
	broker  *fakeBroker
	station *fakeStation
	clock   *clockwork.FakeClock
	obs     *recorder
}

func newHarness(offsets metric.Offsets) *harness {
	cfg := config.Default()
	settings := &config.Settings{
		Config:      cfg,
		Credentials: config.Credentials{Name: "MyWifi", Secret: "secretpass"},
		Source:      "chambre_parents",
		Offsets:     offsets,
	}
	h := &harness{
		sensor:  &fakeSensor{name: "AM2320", raw: env.Sample{Sensor: "AM2320", Temperature: 21.4, Humidity: 55.2}},
		broker:  &fakeBroker{},
		station: &fakeStation{connected: true},
		clock:   clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		obs:     &recorder{},
	}
	h.node = &Node{
		Settings:  settings,
		Sensor:    h.sensor,
		Session:   network.NewSession(h.station, settings.Credentials, cfg.ConnectWait, h.clock),
		TimeSync:  fakeSync{},
		Dial:      h.broker.dialer(),
		Clock:     h.clock,
		Observers: []Observer{h.obs},
	}
	return h
}

func decode(t *testing.T, p published) metric.Record {
	t.Helper()
	var r metric.Record
	if err := json.Unmarshal(p.payload, &r); err != nil {
		t.Fatalf("payload %s: %v", p.payload, err)
	}
	return r
}

func TestCyclePublishesCalibratedRecords(t *testing.T) {
	h := newHarness(metric.Offsets{Temperature: 0.5, Humidity: -1.0})

	if !h.node.RunCycle(context.Background()) {
		t.Fatal("RunCycle reported disconnected")
	}

	pubs, dials, disconnects := h.broker.snapshot()
	if len(pubs) != 2 {
		t.Fatalf("published %d records, want 2", len(pubs))
	}
	if dials != 1 || disconnects != 1 {
		t.Errorf("dials = %d, disconnects = %d", dials, disconnects)
	}
	if got := h.broker.dials[0]; got != [2]string{"umqtt_client", "tcp://pi.hole:1883"} {
		t.Errorf("dialed %v", got)
	}

	temp, hum := decode(t, pubs[0]), decode(t, pubs[1])
	wantTags := metric.Tags{Source: "chambre_parents", Sensor: "AM2320"}
	wantTS := h.clock.Now().Unix()

	if temp.Metric != metric.Temperature || temp.Value != 21.9 || temp.Tags != wantTags {
		t.Errorf("temperature record = %+v", temp)
	}
	if hum.Metric != metric.Humidity || hum.Value != 54.2 || hum.Tags != wantTags {
		t.Errorf("humidity record = %+v", hum)
	}
	if temp.Timestamp != wantTS || hum.Timestamp != wantTS {
		t.Errorf("timestamps = %d, %d, want both %d", temp.Timestamp, hum.Timestamp, wantTS)
	}
	for _, p := range pubs {
		if p.topic != "sensors" {
			t.Errorf("topic = %q", p.topic)
		}
	}

	if len(h.obs.samples) != 1 || h.obs.samples[0].Temperature != 21.9 {
		t.Errorf("observed samples = %+v", h.obs.samples)
	}
}

func TestCycleWithoutOffsetsPublishesRawValues(t *testing.T) {
	h := newHarness(metric.Offsets{})
	h.node.RunCycle(context.Background())

	pubs, _, _ := h.broker.snapshot()
	if len(pubs) != 2 {
		t.Fatalf("published %d records", len(pubs))
	}
	if v := decode(t, pubs[0]).Value; v != 21.4 {
		t.Errorf("temperature = %v, want raw 21.4", v)
	}
	if v := decode(t, pubs[1]).Value; v != 55.2 {
		t.Errorf("humidity = %v, want raw 55.2", v)
	}
}

func TestCycleFaultsAreSwallowed(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(h *harness)
		published int
		dials     int
		stage     string
	}{
		{
			name:  "sensor read",
			setup: func(h *harness) { h.sensor.errs = []error{errors.New("i2c: no ack")} },
			stage: metrics.StageRead,
		},
		{
			name:  "sensor panic",
			setup: func(h *harness) { h.sensor.panic = true },
			stage: metrics.StageRead,
		},
		{
			name:  "broker connect",
			setup: func(h *harness) { h.broker.connectErr = errors.New("connection refused") },
			dials: 1,
			stage: metrics.StagePublish,
		},
		{
			name:      "second publish",
			setup:     func(h *harness) { h.broker.failPublish = 2 },
			published: 1,
			dials:     1,
			stage:     metrics.StagePublish,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(metric.Offsets{})
			tt.setup(h)

			if !h.node.RunCycle(context.Background()) {
				t.Fatal("RunCycle reported disconnected")
			}

			pubs, dials, _ := h.broker.snapshot()
			if len(pubs) != tt.published || dials != tt.dials {
				t.Errorf("published = %d, dials = %d, want %d, %d", len(pubs), dials, tt.published, tt.dials)
			}
			if len(h.obs.failures) != 1 || h.obs.failures[0] != tt.stage {
				t.Errorf("failures = %v, want [%s]", h.obs.failures, tt.stage)
			}
			if len(h.obs.samples) != 0 {
				t.Errorf("sample observed for a failed cycle")
			}
		})
	}
}

func TestCycleTimeSyncFailureStillPublishes(t *testing.T) {
	h := newHarness(metric.Offsets{})
	h.node.TimeSync = fakeSync{err: errors.New("i/o timeout")}

	h.node.RunCycle(context.Background())

	if pubs, _, _ := h.broker.snapshot(); len(pubs) != 2 {
		t.Errorf("published %d records, want 2", len(pubs))
	}
	if len(h.obs.failures) != 1 || h.obs.failures[0] != metrics.StageTimeSync {
		t.Errorf("failures = %v", h.obs.failures)
	}
}

func TestCycleDisconnectedOnlyReconnects(t *testing.T) {
	h := newHarness(metric.Offsets{})
	h.station.connected = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan bool, 1)
	go func() { done <- h.node.RunCycle(ctx) }()

	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("cycle never waited for the connection: %v", err)
	}
	h.clock.Advance(h.node.Settings.ConnectWait)

	if <-done {
		t.Error("RunCycle reported connected")
	}
	if _, dials, _ := h.broker.snapshot(); dials != 0 {
		t.Errorf("dialed the broker %d times while disconnected", dials)
	}
	if h.station.connects != 1 {
		t.Errorf("connect requests = %d, want 1", h.station.connects)
	}
}

func TestRunSurvivesFaultAndSleepsBetweenCycles(t *testing.T) {
	h := newHarness(metric.Offsets{})
	h.sensor.errs = []error{errors.New("crc mismatch")}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.node.Run(ctx) }()

	// First cycle fails and the node sleeps anyway.
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if pubs, _, _ := h.broker.snapshot(); len(pubs) != 0 {
		t.Fatalf("published %d records on a failed read", len(pubs))
	}

	h.clock.Advance(h.node.Settings.CycleInterval)
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if pubs, _, _ := h.broker.snapshot(); len(pubs) != 2 {
		t.Fatalf("published %d records on the second cycle, want 2", len(pubs))
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}
