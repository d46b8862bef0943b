// Package thermocouple defines the Source contract shared by thermocouple
// drivers and by the layers that post-process their readings.
//
// A Source reports a fault, such as an unplugged probe, by returning NaN in
// place of a temperature. NaN is an ordinary value here: it flows through
// unit conversion, averaging and smoothing arithmetically, so callers must
// check IsFault before trusting a number.
package thermocouple

import (
	"errors"
	"math"
)

// ErrOpenCircuit is reported by drivers when the converter flags the
// thermocouple input as open.
var ErrOpenCircuit = errors.New("thermocouple: open circuit")

// Source is a temperature source. Every read is an independent acquisition
// unless the implementation documents state across calls.
//
// Close releases the source and everything it wraps. Layers own the Source
// they wrap, so closing the outermost layer closes the whole chain once.
type Source interface {
	ReadCelsius() float64
	ReadKelvin() float64
	ReadFahrenheit() float64
	Close() error
}

// FaultReporter is optionally implemented by drivers to tell a chip fault
// apart from a NaN that was computed on purpose. LastFault returns nil when
// the most recent acquisition succeeded.
type FaultReporter interface {
	LastFault() error
}

// Fault returns the NaN sentinel used for faulted readings.
func Fault() float64 {
	return math.NaN()
}

// IsFault reports whether v is the fault sentinel.
func IsFault(v float64) bool {
	return math.IsNaN(v)
}

// CelsiusToKelvin converts: K = C + 273.15.
func CelsiusToKelvin(celsius float64) float64 {
	return celsius + 273.15
}

// CelsiusToFahrenheit converts: F = C * 1.8 + 32.
func CelsiusToFahrenheit(celsius float64) float64 {
	return celsius*1.8 + 32
}

// LastFault returns the fault recorded by src, or nil when src does not
// implement FaultReporter.
func LastFault(src Source) error {
	if fr, ok := src.(FaultReporter); ok {
		return fr.LastFault()
	}
	return nil
}
