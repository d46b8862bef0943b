package output

import "github.com/ericogr/max6675-to-mqtt/pkg/sensor"

// Output receives the latest readings on its own interval.
type Output interface {
	Publish([]sensor.Reading) error
	Close() error
}

// helper constructors are in subpackages
