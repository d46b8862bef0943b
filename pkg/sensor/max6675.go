package sensor

import (
	"fmt"
	"io"

	"github.com/ericogr/max6675-to-mqtt/pkg/config"
	"github.com/ericogr/max6675-to-mqtt/pkg/max6675"
	"github.com/ericogr/max6675-to-mqtt/pkg/thermocouple"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// NewThermocoupleSensor initializes periph and opens a MAX6675 for every
// enabled thermocouple in cfg.
func NewThermocoupleSensor(cfg config.Config) (Sensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	return openSensor(cfg, openMAX6675)
}

func openMAX6675(tc config.ThermocoupleConfig) (thermocouple.Source, io.Closer, error) {
	opts := driverOpts(tc)
	if tc.Mode == config.ModeSPI {
		port, err := spireg.Open(tc.SPIBus)
		if err != nil {
			return nil, nil, fmt.Errorf("open spi: %w", err)
		}
		d, err := max6675.NewSPI(port, opts)
		if err != nil {
			port.Close()
			return nil, nil, err
		}
		return d, port, nil
	}

	pins := make([]gpio.PinIO, 0, 3)
	for _, name := range []string{tc.SCKPin, tc.CSPin, tc.SOPin} {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, nil, fmt.Errorf("unknown gpio pin %q", name)
		}
		pins = append(pins, p)
	}
	d, err := max6675.New(pins[0], pins[1], pins[2], opts)
	if err != nil {
		return nil, nil, err
	}
	return d, nil, nil
}
