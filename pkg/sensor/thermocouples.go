package sensor

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ericogr/max6675-to-mqtt/pkg/config"
	"github.com/ericogr/max6675-to-mqtt/pkg/thermocouple"
)

type channel struct {
	name string
	unit thermocouple.Unit
	src  thermocouple.Source
}

// ThermocoupleSensor reads a set of thermocouple chains one after the other.
type ThermocoupleSensor struct {
	mu       sync.Mutex
	channels []channel
	closers  []io.Closer
	now      func() time.Time
	closed   bool
}

// opener returns the raw source for tc and an optional resource to release
// after the source chain has been closed.
type opener func(tc config.ThermocoupleConfig) (thermocouple.Source, io.Closer, error)

func openSensor(cfg config.Config, open opener) (*ThermocoupleSensor, error) {
	s := &ThermocoupleSensor{now: time.Now}
	for _, tc := range cfg.Thermocouples {
		if !tc.Enabled {
			continue
		}
		unit, err := thermocouple.ParseUnit(tc.Unit)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("thermocouple %q: %w", tc.Name, err)
		}
		base, closer, err := open(tc)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("thermocouple %q: %w", tc.Name, err)
		}
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
		s.channels = append(s.channels, channel{name: tc.Name, unit: unit, src: buildChain(tc, base)})
	}
	return s, nil
}

func (s *ThermocoupleSensor) Read() ([]Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("sensor closed")
	}
	out := make([]Reading, 0, len(s.channels))
	for _, ch := range s.channels {
		v := thermocouple.Read(ch.src, ch.unit)
		out = append(out, NewReading(ch.name, ch.unit, v, thermocouple.LastFault(ch.src), s.now()))
	}
	return out, nil
}

// Close closes every source chain, then the buses they were using.
func (s *ThermocoupleSensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, ch := range s.channels {
		if err := ch.src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", ch.name, err))
		}
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
