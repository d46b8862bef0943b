package sensor

import (
	"hash/fnv"
	"io"

	"github.com/ericogr/max6675-to-mqtt/pkg/config"
	"github.com/ericogr/max6675-to-mqtt/pkg/thermocouple"
)

// NewFakeSensor builds the configured chains on top of simulated sources.
func NewFakeSensor(cfg config.Config) (Sensor, error) {
	return openSensor(cfg, openSimulated)
}

func openSimulated(tc config.ThermocoupleConfig) (thermocouple.Source, io.Closer, error) {
	sim := config.SimulationConfig{Base: 25, Jitter: 0.5}
	if tc.Simulation != nil {
		sim = *tc.Simulation
	}
	h := fnv.New64a()
	h.Write([]byte(tc.Name))
	return thermocouple.NewSimulated(sim.Base, sim.Jitter, sim.FaultRate, int64(h.Sum64())), nil, nil
}
