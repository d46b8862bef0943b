package influxdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ericogr/max6675-to-mqtt/pkg/config"
	"github.com/ericogr/max6675-to-mqtt/pkg/output"
	"github.com/ericogr/max6675-to-mqtt/pkg/sensor"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	DefaultMeasurement = "temperature"
	writeTimeout       = 10 * time.Second
)

func newPoints(measurement string, readings []sensor.Reading) []*write.Point {
	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		p := influxdb2.NewPointWithMeasurement(measurement).
			AddTag("sensor", r.Name).
			AddTag("unit", r.Unit.String())
		if r.Fault || r.Value == nil {
			p = p.AddField("fault", true)
		} else {
			p = p.AddField("value", *r.Value)
		}
		points = append(points, p.SetTime(r.Timestamp))
	}
	return points
}

type InfluxDBOutput struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
}

func NewInfluxDB(cfg config.InfluxDBConfig) (output.Output, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, errors.New("influxdb: url and bucket are required")
	}
	m := cfg.Measurement
	if m == "" {
		m = DefaultMeasurement
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxDBOutput{client: client, writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket), measurement: m}, nil
}

func (db *InfluxDBOutput) Publish(readings []sensor.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := db.writeAPI.WritePoint(ctx, newPoints(db.measurement, readings)...); err != nil {
		return fmt.Errorf("influxdb write: %w", err)
	}
	return nil
}

func (db *InfluxDBOutput) Close() error {
	db.client.Close()
	return nil
}
