package max6675

import (
	"encoding/binary"
	"fmt"

	"github.com/ericogr/max6675-to-mqtt/pkg/thermocouple"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// SPIDev is a MAX6675 on a hardware SPI port. The port drives CS for the
// duration of each transfer.
type SPIDev struct {
	c     spi.Conn
	opts  Opts
	fault error
}

// NewSPI connects to the chip on p. The port stays owned by the caller.
func NewSPI(p spi.Port, opts *Opts) (*SPIDev, error) {
	o := opts.withDefaults()
	c, err := p.Connect(o.Frequency, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("max6675: connect %s: %w", p, err)
	}
	return &SPIDev{c: c, opts: o}, nil
}

func (d *SPIDev) String() string {
	return fmt.Sprintf("max6675{%s}", d.c)
}

// ReadCelsius waits for a conversion to complete, then transfers one word.
// The end of the transfer triggers the next conversion.
func (d *SPIDev) ReadCelsius() float64 {
	d.opts.Sleep(d.opts.ConversionTime)
	r := make([]byte, 2)
	if err := d.c.Tx(make([]byte, 2), r); err != nil {
		d.fault = fmt.Errorf("max6675: transfer: %w", err)
		return thermocouple.Fault()
	}
	c, err := Decode(binary.BigEndian.Uint16(r))
	d.fault = err
	return c
}

func (d *SPIDev) ReadKelvin() float64 {
	return thermocouple.CelsiusToKelvin(d.ReadCelsius())
}

func (d *SPIDev) ReadFahrenheit() float64 {
	return thermocouple.CelsiusToFahrenheit(d.ReadCelsius())
}

// SenseTemp runs one acquisition and returns it the periph way.
func (d *SPIDev) SenseTemp() (physic.Temperature, error) {
	c := d.ReadCelsius()
	return toTemperature(c, d.fault)
}

func (d *SPIDev) LastFault() error { return d.fault }

// Close implements thermocouple.Source. The port belongs to the caller.
func (d *SPIDev) Close() error { return nil }

var _ thermocouple.Source = (*SPIDev)(nil)
var _ thermocouple.FaultReporter = (*SPIDev)(nil)
