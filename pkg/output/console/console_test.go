package console

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/ericogr/max6675-to-mqtt/pkg/sensor"
	"github.com/ericogr/max6675-to-mqtt/pkg/thermocouple"
)

func captureStdout(f func()) string {
	r, w, _ := os.Pipe()
	stdout := os.Stdout
	os.Stdout = w
	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()
	f()
	_ = w.Close()
	os.Stdout = stdout
	return <-outC
}

func TestConsolePublish(t *testing.T) {
	c := NewConsole()
	ts := time.Date(2025, 9, 19, 14, 41, 54, 0, time.UTC)
	readings := []sensor.Reading{
		sensor.NewReading("oven", thermocouple.Celsius, 231.75, nil, ts),
		sensor.NewReading("flue", thermocouple.Fahrenheit, thermocouple.Fault(), nil, ts),
	}
	out := captureStdout(func() { _ = c.Publish(readings) })
	want := "2025-09-19T14:41:54Z sensor=oven value=231.75 unit=°C\n" +
		"2025-09-19T14:41:54Z sensor=flue value=fault error=\"thermocouple: open circuit\"\n"
	if out != want {
		t.Fatalf("console output mismatch:\n got: %q\nwant: %q", out, want)
	}
}
