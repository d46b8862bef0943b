package thermocouple

// MinSmoothingFactor is the smallest accepted smoothing factor.
const MinSmoothingFactor = 2

// Smooth wraps a Source with an exponential moving average kept separately
// for each unit.
//
// A running value of exactly 0 means no sample has been seen yet, so a
// genuine reading of 0 restarts the filter from the next input. A NaN input
// poisons the running value of its unit for as long as the Smooth lives.
type Smooth struct {
	origin          Source
	smoothingFactor int
	celsius         float64
	kelvin          float64
	fahrenheit      float64
	closed          bool
}

// NewSmooth takes ownership of origin. A factor below MinSmoothingFactor is
// raised to it.
func NewSmooth(origin Source, smoothingFactor int) *Smooth {
	if smoothingFactor < MinSmoothingFactor {
		smoothingFactor = MinSmoothingFactor
	}
	return &Smooth{origin: origin, smoothingFactor: smoothingFactor}
}

func (s *Smooth) ReadCelsius() float64 {
	s.celsius = s.smoothe(s.origin.ReadCelsius(), s.celsius)
	return s.celsius
}

func (s *Smooth) ReadKelvin() float64 {
	s.kelvin = s.smoothe(s.origin.ReadKelvin(), s.kelvin)
	return s.kelvin
}

func (s *Smooth) ReadFahrenheit() float64 {
	s.fahrenheit = s.smoothe(s.origin.ReadFahrenheit(), s.fahrenheit)
	return s.fahrenheit
}

func (s *Smooth) SmoothingFactor() int { return s.smoothingFactor }

// LastFault forwards to the wrapped source.
func (s *Smooth) LastFault() error { return LastFault(s.origin) }

func (s *Smooth) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.origin.Close()
}

func (s *Smooth) smoothe(input, prior float64) float64 {
	if prior == 0 {
		return input
	}
	k := float64(s.smoothingFactor)
	return (prior*(k-1) + input) / k
}
