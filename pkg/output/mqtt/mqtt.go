package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/max6675-to-mqtt/pkg/config"
	"github.com/ericogr/max6675-to-mqtt/pkg/output"
	"github.com/ericogr/max6675-to-mqtt/pkg/sensor"
	"github.com/ericogr/max6675-to-mqtt/pkg/thermocouple"
)

const (
	// defaults
	DefaultServer     = "tcp://localhost:1883"
	DefaultClientID   = "max6675-client"
	DefaultStateTopic = "max6675/%s"
	// discovery payload keys/values
	keyName                  = "name"
	keyStateTopic            = "state_topic"
	keyUnitOfMeasurement     = "unit_of_measurement"
	keyDeviceClass           = "device_class"
	keyStateClass            = "state_class"
	keyValueTemplate         = "value_template"
	keyJSONAttributesTopic   = "json_attributes_topic"
	keyUniqueID              = "unique_id"
	deviceClassTemperature   = "temperature"
	stateClassMeasurement    = "measurement"
	valueTemplateTemperature = "{{ value_json.temperature }}"

	disconnectQuiesceMs = 250
)

type MQTTOutput struct {
	client         mqtt.Client
	stateTopic     string
	discoveryTopic string
}

// statePayload is published for every reading. Temperature is null when the
// thermocouple faulted.
type statePayload struct {
	Temperature *float64 `json:"temperature"`
	Unit        string   `json:"unit"`
	Fault       bool     `json:"fault"`
}

// NewMQTT connects to the broker and, when a discovery topic is configured,
// announces the enabled thermocouples to Home Assistant.
func NewMQTT(cfg config.MQTTConfig, thermocouples []config.ThermocoupleConfig) (output.Output, error) {
	cfg = withDefaults(cfg)
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newMQTTOutput(client, cfg, thermocouples), nil
}

func newMQTTOutput(client mqtt.Client, cfg config.MQTTConfig, thermocouples []config.ThermocoupleConfig) *MQTTOutput {
	m := &MQTTOutput{client: client, stateTopic: cfg.StateTopic, discoveryTopic: cfg.DiscoveryTopic}
	if m.discoveryTopic == "" {
		return m
	}

	// per-thermocouple discovery when discoveryTopic contains a formatter
	if strings.Contains(m.discoveryTopic, "%s") {
		for i := range thermocouples {
			tc := &thermocouples[i]
			if !tc.Enabled {
				continue
			}
			dTopic := fmt.Sprintf(m.discoveryTopic, tc.Name)
			payload := baseDiscoveryPayload(discoveryName(cfg, tc), formatStateTopic(m.stateTopic, tc.Name), discoveryUniqueID(cfg, tc), unitOf(tc))
			if err := publishJSON(client, dTopic, true, payload); err != nil {
				log.Printf("mqtt discovery publish error: %v", err)
			}
		}
		return m
	}

	unit := thermocouple.Celsius
	for i := range thermocouples {
		if thermocouples[i].Enabled {
			unit = unitOf(&thermocouples[i])
			break
		}
	}
	payload := baseDiscoveryPayload(discoveryName(cfg, nil), m.stateTopic, discoveryUniqueID(cfg, nil), unit)
	if err := publishJSON(client, m.discoveryTopic, true, payload); err != nil {
		log.Printf("mqtt discovery publish error: %v", err)
	}
	return m
}

func (m *MQTTOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		payload := statePayload{Temperature: r.Value, Unit: r.Unit.Symbol(), Fault: r.Fault}
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if err := m.PublishRaw(formatStateTopic(m.stateTopic, r.Name), b, false); err != nil {
			return err
		}
	}
	return nil
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(disconnectQuiesceMs)
	}
	return nil
}

// PublishRaw publishes a raw payload to the given topic. The caller can set the
// retain flag which is useful for discovery messages.
func (m *MQTTOutput) PublishRaw(topic string, payload []byte, retained bool) error {
	if m.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	token := m.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

func withDefaults(cfg config.MQTTConfig) config.MQTTConfig {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.StateTopic == "" {
		cfg.StateTopic = DefaultStateTopic
	}
	return cfg
}

func unitOf(tc *config.ThermocoupleConfig) thermocouple.Unit {
	u, err := thermocouple.ParseUnit(tc.Unit)
	if err != nil {
		return thermocouple.Celsius
	}
	return u
}

// helper: format a state topic for a thermocouple using an optional formatter
func formatStateTopic(base, name string) string {
	if base == "" {
		base = DefaultStateTopic
	}
	if strings.Contains(base, "%s") {
		return fmt.Sprintf(base, name)
	}
	return base
}

// helper: build a human-friendly discovery name; if tc != nil append its name
func discoveryName(cfg config.MQTTConfig, tc *config.ThermocoupleConfig) string {
	name := cfg.DiscoveryName
	if name == "" {
		name = fmt.Sprintf("MAX6675 %s", cfg.ClientID)
	}
	if tc != nil {
		name = fmt.Sprintf("%s %s", name, tc.Name)
	}
	return name
}

// helper: build a unique id for discovery; if tc != nil append its name
func discoveryUniqueID(cfg config.MQTTConfig, tc *config.ThermocoupleConfig) string {
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	if uid != "" && tc != nil {
		uid = fmt.Sprintf("%s_%s", uid, tc.Name)
	}
	return uid
}

// helper: base discovery payload map common to all entries
func baseDiscoveryPayload(name, stateTopic, uniqueID string, unit thermocouple.Unit) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:                name,
		keyStateTopic:          stateTopic,
		keyUnitOfMeasurement:   unit.Symbol(),
		keyDeviceClass:         deviceClassTemperature,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       valueTemplateTemperature,
		keyJSONAttributesTopic: stateTopic,
	}
	if uniqueID != "" {
		payload[keyUniqueID] = uniqueID
	}
	return payload
}

// helper: marshal and publish JSON payload
func publishJSON(client mqtt.Client, topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, retained, b)
	token.Wait()
	return token.Error()
}
