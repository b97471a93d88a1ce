// Package config loads the bridge configuration from the environment,
// optionally seeded by a Home Assistant add-on options.json file. The
// rest of the program receives already-validated values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultOptionsPath is where the supervisor mounts add-on options.
const DefaultOptionsPath = "/data/options.json"

// Sink selects the publication transport.
type Sink string

const (
	SinkMQTT Sink = "mqtt"
	SinkREST Sink = "rest"
	SinkNone Sink = "none" // dry run: log states, publish nowhere
)

// Config holds everything the bridge needs for one process lifetime.
type Config struct {
	Username string
	Password string
	BaseURL  string
	Debug    bool

	// SourceFile, when set, replays captured payloads instead of
	// scraping the portal. Credentials are then not required.
	SourceFile string

	SensorPrefix    string
	PriceM3EUR      float64 // fallback price; 0 means portal-supplied only
	RefreshInterval time.Duration
	FetchTimeout    time.Duration

	// Overconsumption ratio thresholds, recent-week average over the
	// window baseline.
	ThresholdElevated float64
	ThresholdHigh     float64

	Sink Sink

	MQTTBrokerURL       string
	MQTTUsername        string
	MQTTPassword        string
	MQTTClientID        string
	MQTTDiscoveryPrefix string
	MQTTBaseTopic       string

	HAURL   string
	HAToken string

	InfluxEnabled bool
	InfluxURL     string
	InfluxOrg     string
	InfluxToken   string
	InfluxBucket  string

	HTTPAddr string
}

// Load reads options.json (when present) and the environment, with the
// environment taking precedence.
func Load(optionsPath string) (*Config, error) {
	opts, err := loadOptions(optionsPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Username: getEnv("SEDIF_USERNAME", opts.str("sedif_username", "")),
		Password: getEnv("SEDIF_PASSWORD", opts.str("sedif_password", "")),
		BaseURL:  getEnv("SEDIF_BASE_URL", ""),
		Debug:    getEnvBool("SEDIF_DEBUG", opts.boolean("debug", false)),

		SourceFile: getEnv("SEDIF_SOURCE_FILE", ""),

		SensorPrefix:    getEnv("SENSOR_PREFIX", opts.str("sensor_prefix", "sedif")),
		PriceM3EUR:      getEnvFloat("SEDIF_PRICE_M3", opts.float("price_m3", 0)),
		RefreshInterval: time.Duration(getEnvInt("REFRESH_INTERVAL_MINUTES", opts.integer("refresh_interval_minutes", 360))) * time.Minute,
		FetchTimeout:    time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 120)) * time.Second,

		ThresholdElevated: getEnvFloat("OVERCONSUMPTION_ELEVATED", opts.float("threshold_elevated", 1.2)),
		ThresholdHigh:     getEnvFloat("OVERCONSUMPTION_HIGH", opts.float("threshold_high", 1.5)),

		Sink: Sink(getEnv("SINK", opts.str("sink", string(SinkMQTT)))),

		MQTTBrokerURL:       getEnv("MQTT_BROKER_URL", opts.str("mqtt_broker_url", "")),
		MQTTUsername:        getEnv("MQTT_USERNAME", opts.str("mqtt_username", "")),
		MQTTPassword:        getEnv("MQTT_PASSWORD", opts.str("mqtt_password", "")),
		MQTTClientID:        getEnv("MQTT_CLIENT_ID", ""),
		MQTTDiscoveryPrefix: getEnv("MQTT_DISCOVERY_PREFIX", ""),
		MQTTBaseTopic:       getEnv("MQTT_BASE_TOPIC", ""),

		HAURL:   getEnv("HA_URL", "http://supervisor/core"),
		HAToken: firstNonEmpty(os.Getenv("HA_TOKEN"), os.Getenv("SUPERVISOR_TOKEN")),

		InfluxEnabled: getEnvBool("INFLUX_ENABLED", opts.boolean("influx_enabled", false)),
		InfluxURL:     getEnv("INFLUXDB_URL", "http://localhost:8086"),
		InfluxOrg:     getEnv("INFLUXDB_ORG", ""),
		InfluxToken:   getEnv("INFLUX_TOKEN", ""),
		InfluxBucket:  getEnv("INFLUXDB_BUCKET", "ha-sedif"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8099"),
	}

	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 360 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 120 * time.Second
	}
	if cfg.ThresholdElevated <= 0 || cfg.ThresholdHigh <= cfg.ThresholdElevated {
		return nil, fmt.Errorf("config: thresholds must satisfy 0 < elevated < high, got %v/%v",
			cfg.ThresholdElevated, cfg.ThresholdHigh)
	}

	switch cfg.Sink {
	case SinkMQTT, SinkREST, SinkNone:
	default:
		return nil, fmt.Errorf("config: unknown sink %q (want mqtt, rest or none)", cfg.Sink)
	}
	if cfg.SourceFile == "" && (cfg.Username == "" || cfg.Password == "") {
		return nil, fmt.Errorf("config: SEDIF_USERNAME and SEDIF_PASSWORD are required (or set SEDIF_SOURCE_FILE)")
	}
	if cfg.Sink == SinkMQTT && cfg.MQTTBrokerURL == "" {
		return nil, fmt.Errorf("config: MQTT_BROKER_URL is required for the mqtt sink")
	}
	if cfg.Sink == SinkREST && cfg.HAToken == "" {
		return nil, fmt.Errorf("config: HA_TOKEN (or SUPERVISOR_TOKEN) is required for the rest sink")
	}
	return cfg, nil
}

// options is the decoded add-on options.json document.
type options map[string]any

func loadOptions(path string) (options, error) {
	if path == "" {
		return options{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return options{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	var opts options
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return opts, nil
}

func (o options) str(key, fallback string) string {
	if v, ok := o[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (o options) boolean(key string, fallback bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return fallback
}

func (o options) integer(key string, fallback int) int {
	if v, ok := o[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func (o options) float(key string, fallback float64) float64 {
	if v, ok := o[key].(float64); ok {
		return v
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
