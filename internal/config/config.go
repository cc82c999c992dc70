package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDPipeline string
	MQTTClientIDConsole  string

	// Topics
	TopicFrame    string
	TopicSummary  string
	TopicFeedback string

	// Network
	IngestListenAddr string // websocket endpoint devices push samples to
	WebServerPort    int

	// Alignment
	SourceRateHz int // uniform resampling rate
	TargetRateHz int // decimated output rate
	// Decimation stride: output frame i reads source frame i*NUM/DEN.
	DecimationStrideNum int
	DecimationStrideDen int

	// Devices
	ReferenceDevice string   // device held in the known orientation during calibration
	RequiredDevices []string // devices that must cover every emitted frame

	// Calibration
	CalibrationCaptureSeconds int

	// Session
	RollingBufferSize int
	ThresholdsFile    string // optional YAML band definitions

	// Ingestion
	IngestChannelBuffer int // bounded per-connection channel capacity
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//     Has package-level scope (visible to all functions in this package, persists for program lifetime).
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaults returns a Config pre-filled with the standard pipeline values;
// the config file overrides them.
func defaults() *Config {
	return &Config{
		TopicFrame:                "kinematic/frame",
		TopicSummary:              "kinematic/summary",
		TopicFeedback:             "kinematic/feedback",
		IngestListenAddr:          ":8000",
		WebServerPort:             8080,
		SourceRateHz:              100,
		TargetRateHz:              30,
		DecimationStrideNum:       10,
		DecimationStrideDen:       3,
		CalibrationCaptureSeconds: 3,
		RollingBufferSize:         300,
		IngestChannelBuffer:       256,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PIPELINE":
		c.MQTTClientIDPipeline = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_FRAME":
		c.TopicFrame = value
	case "TOPIC_SUMMARY":
		c.TopicSummary = value
	case "TOPIC_FEEDBACK":
		c.TopicFeedback = value

	// Network
	case "INGEST_LISTEN_ADDR":
		c.IngestListenAddr = value
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Alignment
	case "SOURCE_RATE_HZ":
		rate, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.SourceRateHz = rate
	case "TARGET_RATE_HZ":
		rate, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.TargetRateHz = rate
	case "DECIMATION_STRIDE_NUM":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.DecimationStrideNum = n
	case "DECIMATION_STRIDE_DEN":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.DecimationStrideDen = n

	// Devices
	case "REFERENCE_DEVICE":
		c.ReferenceDevice = value
	case "REQUIRED_DEVICES":
		c.RequiredDevices = nil
		for _, id := range strings.Split(value, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				c.RequiredDevices = append(c.RequiredDevices, id)
			}
		}

	// Calibration
	case "CALIBRATION_CAPTURE_SECONDS":
		secs, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.CalibrationCaptureSeconds = secs

	// Session
	case "ROLLING_BUFFER_SIZE":
		size, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.RollingBufferSize = size
	case "THRESHOLDS_FILE":
		c.ThresholdsFile = value

	// Ingestion
	case "INGEST_CHANNEL_BUFFER":
		size, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		c.IngestChannelBuffer = size

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parsePositiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.ReferenceDevice == "" {
		return fmt.Errorf("REFERENCE_DEVICE is required")
	}
	if c.SourceRateHz < c.TargetRateHz {
		return fmt.Errorf("SOURCE_RATE_HZ (%d) must be >= TARGET_RATE_HZ (%d)", c.SourceRateHz, c.TargetRateHz)
	}
	if c.DecimationStrideNum*c.TargetRateHz != c.DecimationStrideDen*c.SourceRateHz {
		return fmt.Errorf("decimation stride %d/%d does not match rates %d->%d",
			c.DecimationStrideNum, c.DecimationStrideDen, c.SourceRateHz, c.TargetRateHz)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
