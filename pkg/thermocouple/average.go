package thermocouple

import "time"

const (
	// DefaultReadingsNumber replaces a non-positive readings number.
	DefaultReadingsNumber = 10
	// DefaultDelay replaces a non-positive delay between readings.
	DefaultDelay = time.Millisecond
)

// Average wraps a Source and returns the mean of several sequential reads.
type Average struct {
	origin         Source
	readingsNumber int
	delay          time.Duration
	sleep          func(time.Duration)
	fault          error
	closed         bool
}

type AverageOption func(*Average)

// WithSleep replaces time.Sleep as the delay between readings.
func WithSleep(sleep func(time.Duration)) AverageOption {
	return func(a *Average) {
		if sleep != nil {
			a.sleep = sleep
		}
	}
}

// NewAverage takes ownership of origin. Invalid parameters are replaced by
// DefaultReadingsNumber and DefaultDelay.
func NewAverage(origin Source, readingsNumber int, delay time.Duration, opts ...AverageOption) *Average {
	if readingsNumber <= 0 {
		readingsNumber = DefaultReadingsNumber
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	a := &Average{origin: origin, readingsNumber: readingsNumber, delay: delay, sleep: time.Sleep}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Average) ReadCelsius() float64 {
	return a.average(a.origin.ReadCelsius)
}

func (a *Average) ReadKelvin() float64 {
	return a.average(a.origin.ReadKelvin)
}

func (a *Average) ReadFahrenheit() float64 {
	return a.average(a.origin.ReadFahrenheit)
}

func (a *Average) ReadingsNumber() int { return a.readingsNumber }

func (a *Average) Delay() time.Duration { return a.delay }

// LastFault returns the first fault the wrapped source reported during the
// most recent read, or nil.
func (a *Average) LastFault() error { return a.fault }

func (a *Average) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.origin.Close()
}

// a NaN sample makes the whole sum NaN
func (a *Average) average(read func() float64) float64 {
	var sum float64
	a.fault = nil
	for i := 0; i < a.readingsNumber; i++ {
		sum += read()
		if a.fault == nil {
			a.fault = LastFault(a.origin)
		}
		a.sleep(a.delay)
	}
	return sum / float64(a.readingsNumber)
}
