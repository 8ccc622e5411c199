// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// AutoClientID asks for a client identifier generated once at startup.
const AutoClientID = "auto"

// displayAddr is the only address the ssd1306 driver drives.
const displayAddr = 0x3C

// Config holds the node settings read from the KEY=VALUE settings file.
type Config struct {
	// MQTT
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string
	MQTTQoS      byte

	// Collector
	TSDBURL           string
	CollectorClientID string

	// Hardware
	I2CBus         string
	DisplayI2CBus  string
	DisplayI2CAddr uint16 // 0 disables the status display, 0x3C enables it

	// Network
	WiFiInterface string
	NTPServer     string
	NTPTimeout    time.Duration

	// Plain-text stores
	WiFiConfigFile string
	SourceFile     string
	OffsetsFile    string

	// Timing
	ScanInterval  time.Duration
	ConnectWait   time.Duration
	CycleInterval time.Duration

	// Observability
	StatusListenAddr string // empty disables the status server
	LogLevel         log.Level
}

// Default returns the settings the node runs with when no settings file is
// present.
func Default() *Config {
	return &Config{
		MQTTBroker:        "tcp://pi.hole:1883",
		MQTTClientID:      "umqtt_client",
		MQTTTopic:         "sensors",
		TSDBURL:           "http://database:6182/api/put",
		CollectorClientID: "data-logger",
		WiFiInterface:     "wlan0",
		NTPServer:         "pool.ntp.org",
		NTPTimeout:        10 * time.Second,
		WiFiConfigFile:    "wifi.config",
		SourceFile:        "source.config",
		OffsetsFile:       "offsets.config",
		ScanInterval:      time.Second,
		ConnectWait:       10 * time.Second,
		CycleInterval:     60 * time.Second,
		LogLevel:          log.InfoLevel,
	}
}

// Load reads the settings file at configPath on top of Default. A missing
// file is not an error: the defaults are used and a warning is logged.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(configPath)
	if os.IsNotExist(err) {
		log.Warnf("config: %s not found, using defaults", configPath)
		return cfg, cfg.finish()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, errors.Wrapf(err, "config line %d", lineNum)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := cfg.finish(); err != nil {
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
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_TOPIC":
		c.MQTTTopic = value
	case "MQTT_QOS":
		qos, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "invalid MQTT_QOS %q", value)
		}
		if qos < 0 || qos > 2 {
			return errors.Errorf("MQTT_QOS must be 0-2, got %d", qos)
		}
		c.MQTTQoS = byte(qos)

	// Collector
	case "TSDB_URL":
		c.TSDBURL = value
	case "COLLECTOR_CLIENT_ID":
		c.CollectorClientID = value

	// Hardware
	case "I2C_BUS":
		c.I2CBus = value
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return errors.Wrapf(err, "invalid DISPLAY_I2C_ADDR %q", value)
		}
		c.DisplayI2CAddr = uint16(addr)

	// Network
	case "WIFI_INTERFACE":
		c.WiFiInterface = value
	case "NTP_SERVER":
		c.NTPServer = value
	case "NTP_TIMEOUT_MS":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.NTPTimeout = d

	// Plain-text stores
	case "WIFI_CONFIG_FILE":
		c.WiFiConfigFile = value
	case "SOURCE_FILE":
		c.SourceFile = value
	case "OFFSETS_FILE":
		c.OffsetsFile = value

	// Timing
	case "SCAN_INTERVAL_MS":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.ScanInterval = d
	case "CONNECT_WAIT_MS":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.ConnectWait = d
	case "CYCLE_INTERVAL_MS":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.CycleInterval = d

	// Observability
	case "STATUS_LISTEN_ADDR":
		c.StatusListenAddr = value
	case "LOG_LEVEL":
		lvl, err := log.ParseLevel(value)
		if err != nil {
			return errors.Wrapf(err, "invalid LOG_LEVEL %q", value)
		}
		c.LogLevel = lvl

	default:
		return errors.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parseMillis(key, value string) (time.Duration, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	if ms <= 0 {
		return 0, errors.Errorf("%s must be positive, got %d", key, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// finish resolves the generated client id and checks required fields.
func (c *Config) finish() error {
	if c.MQTTClientID == AutoClientID {
		c.MQTTClientID = "climate-node-" + uuid.NewString()[:8]
	}
	return c.validate()
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return errors.New("MQTT_BROKER is required")
	}
	if c.MQTTClientID == "" {
		return errors.New("MQTT_CLIENT_ID is required")
	}
	if c.MQTTTopic == "" {
		return errors.New("MQTT_TOPIC is required")
	}
	if c.WiFiConfigFile == "" {
		return errors.New("WIFI_CONFIG_FILE is required")
	}
	if c.SourceFile == "" {
		return errors.New("SOURCE_FILE is required")
	}
	if c.DisplayI2CAddr != 0 {
		if c.DisplayI2CAddr != displayAddr {
			return errors.Errorf("DISPLAY_I2C_ADDR must be 0 (off) or 0x%02X, got 0x%02X", displayAddr, c.DisplayI2CAddr)
		}
		if c.I2CBus == "" || c.DisplayI2CBus == "" {
			return errors.New("I2C_BUS and DISPLAY_I2C_BUS must both be set when the display is enabled")
		}
		if busNumber(c.DisplayI2CBus) == busNumber(c.I2CBus) {
			return errors.New("DISPLAY_I2C_BUS must differ from I2C_BUS")
		}
	}
	return nil
}

// busNumber reduces the aliases i2creg accepts for one Linux bus ("1",
// "I2C1", "/dev/i2c-1") to a single form.
func busNumber(name string) string {
	n := strings.TrimPrefix(name, "/dev/i2c-")
	if len(n) > 3 && strings.EqualFold(n[:3], "i2c") {
		n = n[3:]
	}
	return n
}
