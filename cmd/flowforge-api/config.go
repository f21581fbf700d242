package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML server config. Its values become flag
// defaults: command line flags and environment variables still win.
type FileConfig struct {
	Port            int      `yaml:"port"`
	DatabaseURL     string   `yaml:"database_url"`
	EventBus        string   `yaml:"event_bus"`
	KafkaBrokers    []string `yaml:"kafka_brokers"`
	StreamKeepalive string   `yaml:"stream_keepalive"`
	SweepInterval   string   `yaml:"sweep_interval"`
	StaleAfter      string   `yaml:"stale_after"`
	Otel            *bool    `yaml:"otel"`

	Platform struct {
		URL       string `yaml:"url"`
		AccountID string `yaml:"account_id"`
		Token     string `yaml:"token"`
	} `yaml:"platform"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	err = decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &config, nil
}

// FlagValues maps every non-empty setting to its flag name.
func (c *FileConfig) FlagValues() map[string]string {
	values := map[string]string{
		"database-url":        c.DatabaseURL,
		"event-bus":           c.EventBus,
		"kafka-brokers":       strings.Join(c.KafkaBrokers, ","),
		"stream-keepalive":    c.StreamKeepalive,
		"sweep-interval":      c.SweepInterval,
		"stale-after":         c.StaleAfter,
		"platform-url":        c.Platform.URL,
		"platform-account-id": c.Platform.AccountID,
		"platform-token":      c.Platform.Token,
		"log-level":           c.Log.Level,
		"log-format":          c.Log.Format,
	}

	if c.Port != 0 {
		values["port"] = strconv.Itoa(c.Port)
	}

	if c.Otel != nil {
		values["otel"] = strconv.FormatBool(*c.Otel)
	}

	for name, value := range values {
		if value == "" {
			delete(values, name)
		}
	}

	return values
}
