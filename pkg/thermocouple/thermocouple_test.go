package thermocouple

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// scripted returns its values in order for every unit and counts calls.
type scripted struct {
	values []float64
	calls  []string
	closes int
	err    error
}

func (s *scripted) next(unit string) float64 {
	s.calls = append(s.calls, unit)
	v := s.values[0]
	if len(s.values) > 1 {
		s.values = s.values[1:]
	}
	return v
}

func (s *scripted) ReadCelsius() float64    { return s.next("c") }
func (s *scripted) ReadKelvin() float64     { return s.next("k") }
func (s *scripted) ReadFahrenheit() float64 { return s.next("f") }
func (s *scripted) LastFault() error        { return s.err }
func (s *scripted) Close() error {
	s.closes++
	return nil
}

func TestConversions(t *testing.T) {
	tests := []struct {
		c, k, f float64
	}{
		{0, 273.15, 32},
		{100, 373.15, 212},
		{-40, 233.15, -40},
		{25.25, 298.4, 77.45},
	}
	for _, tt := range tests {
		if got := CelsiusToKelvin(tt.c); math.Abs(got-tt.k) > 1e-9 {
			t.Fatalf("CelsiusToKelvin(%v) = %v; want %v", tt.c, got, tt.k)
		}
		if got := CelsiusToFahrenheit(tt.c); math.Abs(got-tt.f) > 1e-9 {
			t.Fatalf("CelsiusToFahrenheit(%v) = %v; want %v", tt.c, got, tt.f)
		}
	}
	if !IsFault(CelsiusToKelvin(Fault())) || !IsFault(CelsiusToFahrenheit(Fault())) {
		t.Fatalf("conversion of fault sentinel must stay NaN")
	}
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		in   string
		want Unit
		ok   bool
	}{
		{"", Celsius, true},
		{"C", Celsius, true},
		{"kelvin", Kelvin, true},
		{" Fahrenheit ", Fahrenheit, true},
		{"rankine", Celsius, false},
	}
	for _, tt := range tests {
		got, err := ParseUnit(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("ParseUnit(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if got != tt.want {
			t.Fatalf("ParseUnit(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestReadDispatchesByUnit(t *testing.T) {
	src := &scripted{values: []float64{1}}
	Read(src, Celsius)
	Read(src, Kelvin)
	Read(src, Fahrenheit)
	if diff := cmp.Diff(src.calls, []string{"c", "k", "f"}); diff != "" {
		t.Fatalf("unexpected calls (-got +want):\n%s", diff)
	}
}

func TestAverageMean(t *testing.T) {
	src := &scripted{values: []float64{20, 21, 22.5}}
	var delays []time.Duration
	a := NewAverage(src, 3, 5*time.Millisecond, WithSleep(func(d time.Duration) { delays = append(delays, d) }))

	got := a.ReadCelsius()
	want := (20.0 + 21 + 22.5) / 3
	if got != want {
		t.Fatalf("ReadCelsius = %v; want %v", got, want)
	}
	if diff := cmp.Diff(src.calls, []string{"c", "c", "c"}); diff != "" {
		t.Fatalf("unexpected inner calls (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(delays, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond}); diff != "" {
		t.Fatalf("unexpected delays (-got +want):\n%s", diff)
	}
}

func TestAverageUsesMatchingUnit(t *testing.T) {
	src := &scripted{values: []float64{300}}
	a := NewAverage(src, 2, time.Millisecond, WithSleep(func(time.Duration) {}))
	if got := a.ReadKelvin(); got != 300 {
		t.Fatalf("ReadKelvin = %v; want 300", got)
	}
	if got := a.ReadFahrenheit(); got != 300 {
		t.Fatalf("ReadFahrenheit = %v; want 300", got)
	}
	if diff := cmp.Diff(src.calls, []string{"k", "k", "f", "f"}); diff != "" {
		t.Fatalf("unexpected inner calls (-got +want):\n%s", diff)
	}
}

func TestAverageDefaults(t *testing.T) {
	for _, n := range []int{0, -3} {
		a := NewAverage(&scripted{values: []float64{1}}, n, -time.Second)
		if a.ReadingsNumber() != DefaultReadingsNumber {
			t.Fatalf("readings %d => %d; want %d", n, a.ReadingsNumber(), DefaultReadingsNumber)
		}
		if a.Delay() != DefaultDelay {
			t.Fatalf("delay => %v; want %v", a.Delay(), DefaultDelay)
		}
	}

	src := &scripted{values: []float64{7}}
	sleeps := 0
	a := NewAverage(src, 0, 0, WithSleep(func(time.Duration) { sleeps++ }))
	if got := a.ReadCelsius(); got != 7 {
		t.Fatalf("ReadCelsius = %v; want 7", got)
	}
	if len(src.calls) != DefaultReadingsNumber || sleeps != DefaultReadingsNumber {
		t.Fatalf("calls=%d sleeps=%d; want %d each", len(src.calls), sleeps, DefaultReadingsNumber)
	}
}

func TestAverageSingleReading(t *testing.T) {
	src := &scripted{values: []float64{42.25}}
	sleeps := 0
	a := NewAverage(src, 1, time.Millisecond, WithSleep(func(time.Duration) { sleeps++ }))
	if got := a.ReadCelsius(); got != 42.25 {
		t.Fatalf("ReadCelsius = %v; want 42.25", got)
	}
	if sleeps != 1 {
		t.Fatalf("sleeps = %d; want 1", sleeps)
	}
}

func TestAveragePropagatesFault(t *testing.T) {
	src := &scripted{values: []float64{20, math.NaN(), 22}}
	a := NewAverage(src, 3, time.Millisecond, WithSleep(func(time.Duration) {}))
	if got := a.ReadCelsius(); !IsFault(got) {
		t.Fatalf("ReadCelsius = %v; want NaN", got)
	}
	if len(src.calls) != 3 {
		t.Fatalf("faulted sample must not stop sampling, got %d calls", len(src.calls))
	}
}

func TestSmoothSeedAndBlend(t *testing.T) {
	src := &scripted{values: []float64{20, 24, 24}}
	s := NewSmooth(src, 4)

	if got := s.ReadCelsius(); got != 20 {
		t.Fatalf("first ReadCelsius = %v; want 20", got)
	}
	if got := s.ReadCelsius(); got != 21 {
		t.Fatalf("second ReadCelsius = %v; want 21", got)
	}
	want := (21.0*3 + 24) / 4
	if got := s.ReadCelsius(); got != want {
		t.Fatalf("third ReadCelsius = %v; want %v", got, want)
	}
}

func TestSmoothUnitsAreIndependent(t *testing.T) {
	src := &scripted{values: []float64{10, 300, 50, 20}}
	s := NewSmooth(src, 2)

	if got := s.ReadCelsius(); got != 10 {
		t.Fatalf("ReadCelsius = %v; want 10", got)
	}
	// Kelvin has no prior sample, so it must not blend with the Celsius state.
	if got := s.ReadKelvin(); got != 300 {
		t.Fatalf("ReadKelvin = %v; want 300", got)
	}
	if got := s.ReadFahrenheit(); got != 50 {
		t.Fatalf("ReadFahrenheit = %v; want 50", got)
	}
	if got := s.ReadCelsius(); got != 15 {
		t.Fatalf("ReadCelsius = %v; want 15", got)
	}
}

func TestSmoothFactorClamp(t *testing.T) {
	for _, k := range []int{1, 0, -5} {
		if got := NewSmooth(&scripted{values: []float64{1}}, k).SmoothingFactor(); got != MinSmoothingFactor {
			t.Fatalf("factor %d => %d; want %d", k, got, MinSmoothingFactor)
		}
	}
	if got := NewSmooth(&scripted{values: []float64{1}}, 8).SmoothingFactor(); got != 8 {
		t.Fatalf("factor 8 => %d", got)
	}
}

func TestSmoothZeroRestartsFilter(t *testing.T) {
	src := &scripted{values: []float64{0, 30}}
	s := NewSmooth(src, 4)
	s.ReadCelsius()
	if got := s.ReadCelsius(); got != 30 {
		t.Fatalf("after a 0 reading the next input passes through, got %v", got)
	}
}

func TestSmoothFaultContaminatesState(t *testing.T) {
	src := &scripted{values: []float64{20, math.NaN(), 20}}
	s := NewSmooth(src, 2)
	s.ReadCelsius()
	if got := s.ReadCelsius(); !IsFault(got) {
		t.Fatalf("ReadCelsius = %v; want NaN", got)
	}
	if got := s.ReadCelsius(); !IsFault(got) {
		t.Fatalf("NaN state must persist, got %v", got)
	}
	if got := s.ReadKelvin(); got != 20 {
		t.Fatalf("other units are unaffected, got %v", got)
	}
}

func TestNestedCloseReleasesOnce(t *testing.T) {
	src := &scripted{values: []float64{1}}
	chain := NewAverage(NewSmooth(src, 3), 2, time.Millisecond)

	if err := chain.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := chain.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if src.closes != 1 {
		t.Fatalf("inner source closed %d times; want 1", src.closes)
	}
}

func TestLastFaultForwarding(t *testing.T) {
	src := &scripted{values: []float64{1}, err: ErrOpenCircuit}
	chain := NewAverage(NewSmooth(src, 3), 2, time.Millisecond)
	chain.ReadCelsius()
	if err := LastFault(chain); !errors.Is(err, ErrOpenCircuit) {
		t.Fatalf("LastFault = %v; want %v", err, ErrOpenCircuit)
	}
	if err := LastFault(NewSimulated(20, 0, 0, 1)); err != nil {
		t.Fatalf("LastFault on plain source = %v; want nil", err)
	}
}

// faultySamples reports errs[i] as the fault of the i-th read.
type faultySamples struct {
	scripted
	errs []error
	n    int
}

func (f *faultySamples) ReadCelsius() float64 {
	f.err = f.errs[f.n%len(f.errs)]
	f.n++
	return f.scripted.ReadCelsius()
}

func TestAverageKeepsFirstFault(t *testing.T) {
	busErr := errors.New("max6675: clock: line stuck")
	src := &faultySamples{
		scripted: scripted{values: []float64{20, Fault(), 21}},
		errs:     []error{nil, busErr, nil},
	}
	a := NewAverage(src, 3, time.Millisecond, WithSleep(func(time.Duration) {}))

	if got := a.ReadCelsius(); !IsFault(got) {
		t.Fatalf("ReadCelsius = %v; want NaN", got)
	}
	if err := a.LastFault(); err != busErr {
		t.Fatalf("LastFault = %v; want %v", err, busErr)
	}

	// a clean read clears the fault
	src.scripted.values = []float64{22}
	src.errs = []error{nil}
	src.n = 0
	if got := a.ReadCelsius(); got != 22 {
		t.Fatalf("ReadCelsius = %v; want 22", got)
	}
	if err := a.LastFault(); err != nil {
		t.Fatalf("LastFault after clean read = %v; want nil", err)
	}
}

func TestSimulated(t *testing.T) {
	s := NewSimulated(25, 0, 0, 1)
	if got := s.ReadCelsius(); got != 25 {
		t.Fatalf("ReadCelsius = %v; want 25", got)
	}
	if got := s.ReadKelvin(); got != CelsiusToKelvin(25) {
		t.Fatalf("ReadKelvin = %v", got)
	}

	j := NewSimulated(25, 2, 0, 7)
	for i := 0; i < 50; i++ {
		v := j.ReadCelsius()
		if v < 23 || v > 27 || math.Mod(v*4, 1) != 0 {
			t.Fatalf("jittered reading out of range or resolution: %v", v)
		}
	}

	f := NewSimulated(25, 0, 1, 1)
	if got := f.ReadFahrenheit(); !IsFault(got) {
		t.Fatalf("ReadFahrenheit = %v; want NaN", got)
	}
}
