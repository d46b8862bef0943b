package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
)

const (
	SensorReal       = "real"
	SensorSimulation = "simulation"

	ModeGPIO = "gpio"
	ModeSPI  = "spi"

	envPrefix = "MAX6675_"
)

type MQTTConfig struct {
	Server            string `json:"server"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	ClientID          string `json:"client_id"`
	StateTopic        string `json:"state_topic"`
	DiscoveryTopic    string `json:"discovery_topic,omitempty"`
	DiscoveryName     string `json:"discovery_name,omitempty"`
	DiscoveryUniqueID string `json:"discovery_unique_id,omitempty"`
}

type InfluxDBConfig struct {
	URL         string `json:"url"`
	Token       string `json:"token"`
	Org         string `json:"org"`
	Bucket      string `json:"bucket"`
	Measurement string `json:"measurement,omitempty"`
}

type HTTPConfig struct {
	Listen string `json:"listen"`
}

type OutputConfig struct {
	Type       string          `json:"type"`
	IntervalMs int             `json:"interval_ms,omitempty"`
	MQTT       *MQTTConfig     `json:"mqtt,omitempty"`
	InfluxDB   *InfluxDBConfig `json:"influxdb,omitempty"`
	HTTP       *HTTPConfig     `json:"http,omitempty"`
}

// SimulationConfig drives the simulated source used with sensor_type
// "simulation".
type SimulationConfig struct {
	Base      float64 `json:"base"`
	Jitter    float64 `json:"jitter"`
	FaultRate float64 `json:"fault_rate"`
}

// ThermocoupleConfig describes one MAX6675 and the processing applied to
// its readings. Readings > 1 enables averaging, SmoothingFactor > 0 enables
// smoothing. Out of range values are corrected by the decorators.
type ThermocoupleConfig struct {
	Name            string            `json:"name"`
	Enabled         bool              `json:"enabled"`
	Mode            string            `json:"mode"`
	SCKPin          string            `json:"sck_pin,omitempty"`
	CSPin           string            `json:"cs_pin,omitempty"`
	SOPin           string            `json:"so_pin,omitempty"`
	SPIBus          string            `json:"spi_bus,omitempty"`
	SPIHz           int64             `json:"spi_hz,omitempty"`
	ConversionMs    int               `json:"conversion_ms,omitempty"`
	Unit            string            `json:"unit"`
	Readings        int               `json:"readings"`
	DelayMs         int               `json:"delay_ms"`
	SmoothingFactor int               `json:"smoothing_factor"`
	Simulation      *SimulationConfig `json:"simulation,omitempty"`
}

type Config struct {
	SensorType    string               `json:"sensor_type"`
	Thermocouples []ThermocoupleConfig `json:"thermocouples"`
	IntervalMs    int                  `json:"interval_ms"`
	Cron          string               `json:"cron,omitempty"`
	Outputs       []OutputConfig       `json:"outputs"`
}

func DefaultThermocouple() ThermocoupleConfig {
	return ThermocoupleConfig{
		Name:     "thermocouple",
		Enabled:  true,
		Mode:     ModeGPIO,
		SCKPin:   "GPIO11",
		CSPin:    "GPIO8",
		SOPin:    "GPIO9",
		Unit:     "celsius",
		Readings: 1,
	}
}

func DefaultConfig() Config {
	return Config{
		SensorType:    SensorReal,
		Thermocouples: []ThermocoupleConfig{DefaultThermocouple()},
		IntervalMs:    1000,
		Outputs:       []OutputConfig{{Type: "console", IntervalMs: 1000}},
	}
}

// LoadFromFlags loads configuration from the process arguments.
func LoadFromFlags() (Config, error) {
	return Load(os.Args[1:])
}

// Load builds the configuration in increasing order of precedence: defaults,
// JSON file (-config), environment (optionally read from -env-file), flags.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("max6675-to-mqtt", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON config file")
	envFile := fs.String("env-file", "", "Path to a .env file with MAX6675_* variables")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|simulation")
	flagInterval := fs.Int("interval-ms", -1, "Read interval in ms")
	flagCron := fs.String("cron", "", "cron spec for reads, replaces interval-ms")
	flagThermocouples := fs.String("thermocouples", "", "Comma-separated thermocouple names to enable")
	flagUnits := fs.String("units", "", "Per-thermocouple units e.g. oven=celsius,pipe=fahrenheit")
	flagReadings := fs.String("readings", "", "Per-thermocouple averaged readings e.g. oven=10")
	flagDelays := fs.String("delays-ms", "", "Per-thermocouple delay between averaged readings e.g. oven=5")
	flagSmoothing := fs.String("smoothing", "", "Per-thermocouple smoothing factor e.g. oven=4")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt,influxdb,http)")
	flagOutputIntervals := fs.String("output-intervals", "", "Comma-separated output intervals e.g. console=1000,mqtt=5000")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT state topic, %s is replaced by the thermocouple name")
	flagInfluxURL := fs.String("influxdb-url", "", "InfluxDB server URL")
	flagInfluxToken := fs.String("influxdb-token", "", "InfluxDB token")
	flagInfluxOrg := fs.String("influxdb-org", "", "InfluxDB organization")
	flagInfluxBucket := fs.String("influxdb-bucket", "", "InfluxDB bucket")
	flagHTTPListen := fs.String("http-listen", "", "HTTP API listen address e.g. :8080")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if *cfgPath != "" {
		p, err := homedir.Expand(*cfgPath)
		if err != nil {
			return cfg, fmt.Errorf("config path: %w", err)
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		// decode lists into empty slices so file entries do not inherit defaults
		defaults := cfg
		cfg.Thermocouples, cfg.Outputs = nil, nil
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
		if cfg.Thermocouples == nil {
			cfg.Thermocouples = defaults.Thermocouples
		}
		if cfg.Outputs == nil {
			cfg.Outputs = defaults.Outputs
		}
		for i := range cfg.Thermocouples {
			if cfg.Thermocouples[i].Mode == "" {
				cfg.Thermocouples[i].Mode = ModeGPIO
			}
		}
	}

	if *envFile != "" {
		p, err := homedir.Expand(*envFile)
		if err != nil {
			return cfg, fmt.Errorf("env file path: %w", err)
		}
		if err := godotenv.Load(p); err != nil {
			return cfg, fmt.Errorf("read env file: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagCron != "" {
		cfg.Cron = *flagCron
	}
	if *flagThermocouples != "" {
		enabled := map[string]bool{}
		for _, n := range parseCSV(*flagThermocouples) {
			enabled[n] = true
		}
		for i := range cfg.Thermocouples {
			cfg.Thermocouples[i].Enabled = enabled[cfg.Thermocouples[i].Name]
		}
	}
	if *flagUnits != "" {
		m, err := parseKeyStringMap(*flagUnits)
		if err != nil {
			return cfg, fmt.Errorf("units: %w", err)
		}
		for i := range cfg.Thermocouples {
			if v, ok := m[cfg.Thermocouples[i].Name]; ok {
				cfg.Thermocouples[i].Unit = v
			}
		}
	}
	intFlags := []struct {
		name string
		val  string
		set  func(*ThermocoupleConfig, int)
	}{
		{"readings", *flagReadings, func(t *ThermocoupleConfig, v int) { t.Readings = v }},
		{"delays-ms", *flagDelays, func(t *ThermocoupleConfig, v int) { t.DelayMs = v }},
		{"smoothing", *flagSmoothing, func(t *ThermocoupleConfig, v int) { t.SmoothingFactor = v }},
	}
	for _, f := range intFlags {
		if f.val == "" {
			continue
		}
		m, err := parseKeyIntMap(f.val)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", f.name, err)
		}
		for i := range cfg.Thermocouples {
			if v, ok := m[cfg.Thermocouples[i].Name]; ok {
				f.set(&cfg.Thermocouples[i], v)
			}
		}
	}

	if *flagOutputs != "" {
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: p, IntervalMs: cfg.IntervalMs})
		}
		cfg.Outputs = outs
	}
	if *flagOutputIntervals != "" {
		m, err := parseKeyIntMap(*flagOutputIntervals)
		if err != nil {
			return cfg, fmt.Errorf("output-intervals: %w", err)
		}
		for i := range cfg.Outputs {
			if v, ok := m[cfg.Outputs[i].Type]; ok {
				cfg.Outputs[i].IntervalMs = v
			}
		}
	}
	// output settings from the environment go to the final output list and
	// stay below the explicit output flags
	applyOutputEnv(&cfg)
	if *flagMQTTServer != "" || *flagMQTTUser != "" || *flagMQTTPass != "" || *flagClientID != "" || *flagTopic != "" {
		forOutputs(&cfg, "mqtt", func(o *OutputConfig) {
			if o.MQTT == nil {
				o.MQTT = &MQTTConfig{}
			}
			setIf(&o.MQTT.Server, *flagMQTTServer)
			setIf(&o.MQTT.Username, *flagMQTTUser)
			setIf(&o.MQTT.Password, *flagMQTTPass)
			setIf(&o.MQTT.ClientID, *flagClientID)
			setIf(&o.MQTT.StateTopic, *flagTopic)
		})
	}
	if *flagInfluxURL != "" || *flagInfluxToken != "" || *flagInfluxOrg != "" || *flagInfluxBucket != "" {
		forOutputs(&cfg, "influxdb", func(o *OutputConfig) {
			if o.InfluxDB == nil {
				o.InfluxDB = &InfluxDBConfig{}
			}
			setIf(&o.InfluxDB.URL, *flagInfluxURL)
			setIf(&o.InfluxDB.Token, *flagInfluxToken)
			setIf(&o.InfluxDB.Org, *flagInfluxOrg)
			setIf(&o.InfluxDB.Bucket, *flagInfluxBucket)
		})
	}
	if *flagHTTPListen != "" {
		forOutputs(&cfg, "http", func(o *OutputConfig) {
			if o.HTTP == nil {
				o.HTTP = &HTTPConfig{}
			}
			o.HTTP.Listen = *flagHTTPListen
		})
	}

	// ensure outputs have interval default
	for i := range cfg.Outputs {
		if cfg.Outputs[i].IntervalMs == 0 {
			cfg.Outputs[i].IntervalMs = cfg.IntervalMs
		}
	}

	return cfg, cfg.Validate()
}

// Validate reports configuration that cannot be corrected silently.
func (c Config) Validate() error {
	if c.SensorType != SensorReal && c.SensorType != SensorSimulation {
		return fmt.Errorf("sensor-type must be %q or %q, got %q", SensorReal, SensorSimulation, c.SensorType)
	}
	if c.Cron == "" && c.IntervalMs <= 0 {
		return errors.New("interval-ms must be > 0")
	}
	seen := map[string]bool{}
	enabled := 0
	for _, t := range c.Thermocouples {
		if t.Name == "" {
			return errors.New("thermocouple name must not be empty")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate thermocouple %q", t.Name)
		}
		seen[t.Name] = true
		if !t.Enabled {
			continue
		}
		enabled++
		switch t.Mode {
		case ModeGPIO:
			if c.SensorType == SensorReal && (t.SCKPin == "" || t.CSPin == "" || t.SOPin == "") {
				return fmt.Errorf("thermocouple %q: gpio mode needs sck_pin, cs_pin and so_pin", t.Name)
			}
		case ModeSPI:
		default:
			return fmt.Errorf("thermocouple %q: unknown mode %q", t.Name, t.Mode)
		}
	}
	if enabled == 0 {
		return errors.New("no thermocouple enabled")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(envPrefix + "SENSOR_TYPE"); v != "" {
		cfg.SensorType = v
	}
	if v := os.Getenv(envPrefix + "INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sINTERVAL_MS: %w", envPrefix, err)
		}
		cfg.IntervalMs = n
	}
	if v := os.Getenv(envPrefix + "CRON"); v != "" {
		cfg.Cron = v
	}
	return nil
}

// applyOutputEnv fills output settings from MAX6675_MQTT_* and
// MAX6675_INFLUXDB_*, creating the output when it is not configured yet.
func applyOutputEnv(cfg *Config) {
	mqttEnv := []struct {
		key string
		set func(*MQTTConfig, string)
	}{
		{"MQTT_SERVER", func(m *MQTTConfig, v string) { m.Server = v }},
		{"MQTT_USER", func(m *MQTTConfig, v string) { m.Username = v }},
		{"MQTT_PASS", func(m *MQTTConfig, v string) { m.Password = v }},
		{"MQTT_CLIENT_ID", func(m *MQTTConfig, v string) { m.ClientID = v }},
		{"MQTT_TOPIC", func(m *MQTTConfig, v string) { m.StateTopic = v }},
	}
	for _, e := range mqttEnv {
		v := os.Getenv(envPrefix + e.key)
		if v == "" {
			continue
		}
		set := e.set
		forOutputs(cfg, "mqtt", func(o *OutputConfig) {
			if o.MQTT == nil {
				o.MQTT = &MQTTConfig{}
			}
			set(o.MQTT, v)
		})
	}

	influxEnv := []struct {
		key string
		set func(*InfluxDBConfig, string)
	}{
		{"INFLUXDB_URL", func(c *InfluxDBConfig, v string) { c.URL = v }},
		{"INFLUXDB_TOKEN", func(c *InfluxDBConfig, v string) { c.Token = v }},
		{"INFLUXDB_ORG", func(c *InfluxDBConfig, v string) { c.Org = v }},
		{"INFLUXDB_BUCKET", func(c *InfluxDBConfig, v string) { c.Bucket = v }},
	}
	for _, e := range influxEnv {
		v := os.Getenv(envPrefix + e.key)
		if v == "" {
			continue
		}
		set := e.set
		forOutputs(cfg, "influxdb", func(o *OutputConfig) {
			if o.InfluxDB == nil {
				o.InfluxDB = &InfluxDBConfig{}
			}
			set(o.InfluxDB, v)
		})
	}
}

// forOutputs applies fn to every output of type typ, creating one when none
// exists.
func forOutputs(cfg *Config, typ string, fn func(*OutputConfig)) {
	applied := false
	for i := range cfg.Outputs {
		if strings.EqualFold(cfg.Outputs[i].Type, typ) {
			fn(&cfg.Outputs[i])
			applied = true
		}
	}
	if !applied {
		o := OutputConfig{Type: typ, IntervalMs: cfg.IntervalMs}
		fn(&o)
		cfg.Outputs = append(cfg.Outputs, o)
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseKeyStringMap(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range parseCSV(s) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid entry '%s', want key=value", p)
		}
		k := strings.TrimSpace(kv[0])
		if k == "" {
			return nil, fmt.Errorf("invalid entry '%s', empty key", p)
		}
		out[k] = strings.TrimSpace(kv[1])
	}
	return out, nil
}

func parseKeyIntMap(s string) (map[string]int, error) {
	raw, err := parseKeyStringMap(s)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid value for '%s': %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}
