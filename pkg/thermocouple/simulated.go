package thermocouple

import (
	"math"
	"math/rand"
	"sync"
)

// Simulated is a Source that needs no hardware. It reports Base plus a
// uniform jitter in [-Jitter, Jitter], quantized to the 0.25 °C resolution
// of a MAX6675, and faults with probability FaultRate.
type Simulated struct {
	Base      float64
	Jitter    float64
	FaultRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulated(base, jitter, faultRate float64, seed int64) *Simulated {
	return &Simulated{Base: base, Jitter: jitter, FaultRate: faultRate, rnd: rand.New(rand.NewSource(seed))}
}

func (s *Simulated) ReadCelsius() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(1))
	}
	if s.FaultRate > 0 && s.rnd.Float64() < s.FaultRate {
		return Fault()
	}
	v := s.Base
	if s.Jitter > 0 {
		v += (s.rnd.Float64()*2 - 1) * s.Jitter
	}
	return math.Round(v*4) / 4
}

func (s *Simulated) ReadKelvin() float64 {
	return CelsiusToKelvin(s.ReadCelsius())
}

func (s *Simulated) ReadFahrenheit() float64 {
	return CelsiusToFahrenheit(s.ReadCelsius())
}

func (s *Simulated) Close() error { return nil }
