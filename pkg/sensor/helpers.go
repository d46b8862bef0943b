package sensor

import (
	"time"

	"github.com/ericogr/max6675-to-mqtt/pkg/config"
	"github.com/ericogr/max6675-to-mqtt/pkg/max6675"
	"github.com/ericogr/max6675-to-mqtt/pkg/thermocouple"
	"periph.io/x/conn/v3/physic"
)

// buildChain wraps base with the processing configured for tc. Averaging is
// outermost so each averaged sample is a smoothed value.
func buildChain(tc config.ThermocoupleConfig, base thermocouple.Source) thermocouple.Source {
	src := base
	if tc.SmoothingFactor > 0 {
		src = thermocouple.NewSmooth(src, tc.SmoothingFactor)
	}
	if tc.Readings > 1 {
		src = thermocouple.NewAverage(src, tc.Readings, time.Duration(tc.DelayMs)*time.Millisecond)
	}
	return src
}

func driverOpts(tc config.ThermocoupleConfig) *max6675.Opts {
	return &max6675.Opts{
		Frequency:      physic.Frequency(tc.SPIHz) * physic.Hertz,
		ConversionTime: time.Duration(tc.ConversionMs) * time.Millisecond,
	}
}

// acquisitionTime is how long the driver for tc blocks per raw read.
func acquisitionTime(tc config.ThermocoupleConfig) time.Duration {
	o := max6675.DefaultOpts
	if tc.Mode == config.ModeSPI {
		if tc.ConversionMs > 0 {
			return time.Duration(tc.ConversionMs) * time.Millisecond
		}
		return o.ConversionTime
	}
	return o.SetupDelay + 32*o.HalfPeriod
}

// EstimateReadDuration returns the minimum time one Read of a sensor built
// from cfg blocks for.
func EstimateReadDuration(cfg config.Config) time.Duration {
	var total time.Duration
	for _, tc := range cfg.Thermocouples {
		if !tc.Enabled {
			continue
		}
		var per time.Duration
		if cfg.SensorType == config.SensorReal {
			per = acquisitionTime(tc)
		}
		if tc.Readings > 1 {
			delay := time.Duration(tc.DelayMs) * time.Millisecond
			if delay <= 0 {
				delay = thermocouple.DefaultDelay
			}
			per = time.Duration(tc.Readings) * (per + delay)
		}
		total += per
	}
	return total
}
