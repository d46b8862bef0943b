package sensor

import (
	"time"

	"github.com/ericogr/max6675-to-mqtt/pkg/thermocouple"
)

// Reading is one temperature taken from a named thermocouple. Value is nil
// when the acquisition faulted, so a Reading always encodes to valid JSON.
type Reading struct {
	Name      string            `json:"name"`
	Unit      thermocouple.Unit `json:"unit"`
	Value     *float64          `json:"value"`
	Fault     bool              `json:"fault"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewReading wraps a value read from a thermocouple.Source. fault is the
// optional explicit indicator from thermocouple.LastFault.
func NewReading(name string, unit thermocouple.Unit, v float64, fault error, ts time.Time) Reading {
	r := Reading{Name: name, Unit: unit, Timestamp: ts}
	if thermocouple.IsFault(v) {
		r.Fault = true
		if fault == nil {
			fault = thermocouple.ErrOpenCircuit
		}
		r.Error = fault.Error()
		return r
	}
	r.Value = &v
	return r
}

type Sensor interface {
	Read() ([]Reading, error)
	Close() error
}
