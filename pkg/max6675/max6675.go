// Package max6675 reads a thermocouple through a Maxim MAX6675
// cold-junction-compensated converter.
//
// The chip shifts out a 16 bit word, MSB first, while CS is low:
//
//	D15     dummy sign bit, always 0
//	D14-D3  temperature, 0.25 °C per count
//	D2      thermocouple input open
//	D1      device ID, always 0
//	D0      three-state
//
// Two transports are provided. Dev bit-bangs the clock on plain GPIO lines;
// SPIDev uses a hardware SPI port. Both implement thermocouple.Source and
// report an open input as NaN.
//
// Datasheet: https://www.analog.com/media/en/technical-documentation/data-sheets/MAX6675.pdf
package max6675

import (
	"fmt"
	"time"

	"github.com/ericogr/max6675-to-mqtt/pkg/thermocouple"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

const (
	faultBit   = 0x4
	dataShift  = 3
	resolution = 0.25
	wordBits   = 16
)

// Opts holds the timing of a transaction. Zero fields take the value from
// DefaultOpts.
type Opts struct {
	// SetupDelay is the wait between CS going low and the first clock edge.
	SetupDelay time.Duration
	// HalfPeriod is the duration of each clock level when bit-banging.
	HalfPeriod time.Duration
	// Frequency is the SPI clock used by SPIDev. The chip tops out at 4.3MHz.
	Frequency physic.Frequency
	// ConversionTime is slept by SPIDev before every transfer so the chip has
	// finished converting since it was last triggered.
	ConversionTime time.Duration
	// Sleep blocks for the given duration. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	SetupDelay:     time.Millisecond,
	HalfPeriod:     time.Millisecond,
	Frequency:      4 * physic.MegaHertz,
	ConversionTime: 220 * time.Millisecond,
	Sleep:          time.Sleep,
}

func (o *Opts) withDefaults() Opts {
	out := DefaultOpts
	if o == nil {
		return out
	}
	if o.SetupDelay > 0 {
		out.SetupDelay = o.SetupDelay
	}
	if o.HalfPeriod > 0 {
		out.HalfPeriod = o.HalfPeriod
	}
	if o.Frequency > 0 {
		out.Frequency = o.Frequency
	}
	if o.ConversionTime > 0 {
		out.ConversionTime = o.ConversionTime
	}
	if o.Sleep != nil {
		out.Sleep = o.Sleep
	}
	return out
}

// Decode converts a raw word to degrees Celsius. When the open input flag is
// set it returns NaN and thermocouple.ErrOpenCircuit.
func Decode(word uint16) (float64, error) {
	if word&faultBit != 0 {
		return thermocouple.Fault(), thermocouple.ErrOpenCircuit
	}
	return float64(word>>dataShift) * resolution, nil
}

// Dev is a MAX6675 wired to three GPIO lines.
type Dev struct {
	sck   gpio.PinOut
	cs    gpio.PinOut
	so    gpio.PinIn
	opts  Opts
	fault error
}

// New configures the lines and leaves the chip deselected.
func New(sck, cs gpio.PinOut, so gpio.PinIn, opts *Opts) (*Dev, error) {
	if err := cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("max6675: cs %s: %w", cs, err)
	}
	if err := sck.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("max6675: sck %s: %w", sck, err)
	}
	if err := so.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("max6675: so %s: %w", so, err)
	}
	return &Dev{sck: sck, cs: cs, so: so, opts: opts.withDefaults()}, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("max6675{sck:%s cs:%s so:%s}", d.sck, d.cs, d.so)
}

// ReadCelsius runs one acquisition. It returns NaN when the thermocouple is
// open or a line could not be driven; LastFault tells which.
func (d *Dev) ReadCelsius() float64 {
	word, err := d.readWord()
	if err != nil {
		d.fault = err
		return thermocouple.Fault()
	}
	c, err := Decode(word)
	d.fault = err
	return c
}

func (d *Dev) ReadKelvin() float64 {
	return thermocouple.CelsiusToKelvin(d.ReadCelsius())
}

func (d *Dev) ReadFahrenheit() float64 {
	return thermocouple.CelsiusToFahrenheit(d.ReadCelsius())
}

// SenseTemp runs one acquisition and returns it the periph way.
func (d *Dev) SenseTemp() (physic.Temperature, error) {
	c := d.ReadCelsius()
	return toTemperature(c, d.fault)
}

func (d *Dev) LastFault() error { return d.fault }

// Close implements thermocouple.Source. The lines belong to the caller.
func (d *Dev) Close() error { return nil }

func (d *Dev) readWord() (uint16, error) {
	if err := d.cs.Out(gpio.Low); err != nil {
		return 0, fmt.Errorf("max6675: select: %w", err)
	}
	d.opts.Sleep(d.opts.SetupDelay)
	var word uint16
	for i := wordBits - 1; i >= 0; i-- {
		if err := d.sck.Out(gpio.Low); err != nil {
			_ = d.cs.Out(gpio.High)
			return 0, fmt.Errorf("max6675: clock: %w", err)
		}
		d.opts.Sleep(d.opts.HalfPeriod)
		if d.so.Read() == gpio.High {
			word |= 1 << uint(i)
		}
		if err := d.sck.Out(gpio.High); err != nil {
			_ = d.cs.Out(gpio.High)
			return 0, fmt.Errorf("max6675: clock: %w", err)
		}
		d.opts.Sleep(d.opts.HalfPeriod)
	}
	if err := d.cs.Out(gpio.High); err != nil {
		return 0, fmt.Errorf("max6675: deselect: %w", err)
	}
	return word, nil
}

func toTemperature(celsius float64, fault error) (physic.Temperature, error) {
	if fault != nil {
		return 0, fault
	}
	return physic.Temperature(celsius*float64(physic.Celsius)) + physic.ZeroCelsius, nil
}

var _ thermocouple.Source = (*Dev)(nil)
var _ thermocouple.FaultReporter = (*Dev)(nil)
