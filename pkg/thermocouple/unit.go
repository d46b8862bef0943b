package thermocouple

import (
	"fmt"
	"strings"
)

type Unit int

const (
	Celsius Unit = iota
	Kelvin
	Fahrenheit
)

func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c", "celsius":
		return Celsius, nil
	case "k", "kelvin":
		return Kelvin, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	default:
		return Celsius, fmt.Errorf("unknown unit %q", s)
	}
}

func (u Unit) String() string {
	switch u {
	case Kelvin:
		return "kelvin"
	case Fahrenheit:
		return "fahrenheit"
	default:
		return "celsius"
	}
}

// Symbol is the unit of measurement as Home Assistant expects it.
func (u Unit) Symbol() string {
	switch u {
	case Kelvin:
		return "K"
	case Fahrenheit:
		return "°F"
	default:
		return "°C"
	}
}

// Read performs a single read of src in unit u.
func Read(src Source, u Unit) float64 {
	switch u {
	case Kelvin:
		return src.ReadKelvin()
	case Fahrenheit:
		return src.ReadFahrenheit()
	default:
		return src.ReadCelsius()
	}
}

func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *Unit) UnmarshalText(b []byte) error {
	v, err := ParseUnit(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}
