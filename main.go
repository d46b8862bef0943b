package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ericogr/max6675-to-mqtt/pkg/config"
	"github.com/ericogr/max6675-to-mqtt/pkg/output"
	"github.com/ericogr/max6675-to-mqtt/pkg/output/console"
	"github.com/ericogr/max6675-to-mqtt/pkg/output/httpapi"
	"github.com/ericogr/max6675-to-mqtt/pkg/output/influxdb"
	"github.com/ericogr/max6675-to-mqtt/pkg/output/mqtt"
	"github.com/ericogr/max6675-to-mqtt/pkg/sensor"
	"github.com/robfig/cron/v3"
)

type outputEntry struct {
	Type       string
	IntervalMs int
	Out        output.Output
}

// snapshot holds the latest readings shared between the reader and outputs.
type snapshot struct {
	mu       sync.Mutex
	readings []sensor.Reading
}

func (s *snapshot) set(r []sensor.Reading) {
	s.mu.Lock()
	s.readings = r
	s.mu.Unlock()
}

func (s *snapshot) get() []sensor.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readings == nil {
		return nil
	}
	cp := make([]sensor.Reading, len(s.readings))
	copy(cp, s.readings)
	return cp
}

// computeSensorInterval returns the read interval in ms. A read never starts
// before the previous one can have finished.
func computeSensorInterval(cfg config.Config) int {
	ms := int((sensor.EstimateReadDuration(cfg) + time.Millisecond - 1) / time.Millisecond)
	if cfg.IntervalMs > ms {
		return cfg.IntervalMs
	}
	if ms < 1 {
		return 1
	}
	return ms
}

// initOutputs creates every configured output. Outputs without an interval
// publish at intervalMs.
func initOutputs(cfg *config.Config, intervalMs int) ([]outputEntry, error) {
	entries := make([]outputEntry, 0, len(cfg.Outputs))
	for i := range cfg.Outputs {
		o := &cfg.Outputs[i]
		if o.IntervalMs <= 0 {
			o.IntervalMs = intervalMs
		}
		out, err := newOutput(cfg, o)
		if err != nil {
			closeOutputs(entries)
			return nil, fmt.Errorf("output %s: %w", o.Type, err)
		}
		entries = append(entries, outputEntry{Type: o.Type, IntervalMs: o.IntervalMs, Out: out})
	}
	return entries, nil
}

func newOutput(cfg *config.Config, o *config.OutputConfig) (output.Output, error) {
	switch strings.ToLower(o.Type) {
	case "console":
		return console.NewConsole(), nil
	case "mqtt":
		var m config.MQTTConfig
		if o.MQTT != nil {
			m = *o.MQTT
		}
		return mqtt.NewMQTT(m, cfg.Thermocouples)
	case "influxdb":
		if o.InfluxDB == nil {
			return nil, errors.New("missing influxdb settings")
		}
		return influxdb.NewInfluxDB(*o.InfluxDB)
	case "http":
		var h config.HTTPConfig
		if o.HTTP != nil {
			h = *o.HTTP
		}
		return httpapi.NewHTTP(h)
	default:
		return nil, fmt.Errorf("unknown output type %q", o.Type)
	}
}

func closeOutputs(entries []outputEntry) {
	for _, e := range entries {
		if err := e.Out.Close(); err != nil {
			log.Printf("close output %s: %v", e.Type, err)
		}
	}
}

// startReader reads s into snap on the cron spec, or every intervalMs when
// spec is empty. The returned function stops scheduling and waits for an
// in-flight read.
func startReader(ctx context.Context, s sensor.Sensor, snap *snapshot, spec string, intervalMs int) (func(), error) {
	read := func() {
		readings, err := s.Read()
		if err != nil {
			log.Printf("sensor read error: %v", err)
			return
		}
		snap.set(readings)
	}

	if spec != "" {
		cr := cron.New()
		if _, err := cr.AddFunc(spec, read); err != nil {
			return nil, fmt.Errorf("cron spec %q: %w", spec, err)
		}
		log.Printf("Starting cron scheduler with spec %q", spec)
		cr.Start()
		return func() { <-cr.Stop().Done() }, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
		defer t.Stop()
		read()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				read()
			}
		}
	}()
	return func() { cancel(); wg.Wait() }, nil
}

// startPublishers publishes the snapshot to each output on its own ticker.
func startPublishers(ctx context.Context, entries []outputEntry, snap *snapshot) *sync.WaitGroup {
	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e outputEntry) {
			defer wg.Done()
			t := time.NewTicker(time.Duration(e.IntervalMs) * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					r := snap.get()
					if r == nil {
						continue
					}
					if err := e.Out.Publish(r); err != nil {
						log.Printf("output %s publish error: %v", e.Type, err)
					}
				}
			}
		}(e)
	}
	return &wg
}

func main() {
	fmt.Println("starting...")

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var s sensor.Sensor
	if cfg.SensorType == config.SensorSimulation {
		s, err = sensor.NewFakeSensor(cfg)
	} else {
		s, err = sensor.NewThermocoupleSensor(cfg)
	}
	if err != nil {
		log.Fatalf("sensor: %v", err)
	}

	intervalMs := computeSensorInterval(cfg)
	if cfg.Cron == "" && intervalMs != cfg.IntervalMs {
		log.Printf("interval-ms %d is shorter than one read, using %d", cfg.IntervalMs, intervalMs)
	}

	entries, err := initOutputs(&cfg, intervalMs)
	if err != nil {
		s.Close()
		log.Fatalf("outputs: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap := &snapshot{}
	stopReader, err := startReader(ctx, s, snap, cfg.Cron, intervalMs)
	if err != nil {
		closeOutputs(entries)
		s.Close()
		log.Fatalf("scheduler: %v", err)
	}
	publishers := startPublishers(ctx, entries, snap)

	<-ctx.Done()
	log.Println("Cleaning up...")
	stopReader()
	publishers.Wait()
	closeOutputs(entries)
	if err := s.Close(); err != nil {
		log.Printf("close sensor: %v", err)
	}
}
