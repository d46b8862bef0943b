package console

import (
	"fmt"
	"time"

	"github.com/ericogr/max6675-to-mqtt/pkg/output"
	"github.com/ericogr/max6675-to-mqtt/pkg/sensor"
)

type ConsoleOutput struct{}

func NewConsole() output.Output { return &ConsoleOutput{} }

func (c *ConsoleOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		ts := r.Timestamp.Format(time.RFC3339)
		if r.Fault || r.Value == nil {
			fmt.Printf("%s sensor=%s value=fault error=%q\n", ts, r.Name, r.Error)
			continue
		}
		fmt.Printf("%s sensor=%s value=%.2f unit=%s\n", ts, r.Name, *r.Value, r.Unit.Symbol())
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }
