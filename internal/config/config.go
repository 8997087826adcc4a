package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hopstack/toolcatalog/catalog"
)

// Config represents the configuration for the toolcatalog service
type Config struct {
	// Listen is the HTTP listen address for serve
	Listen string `json:"listen"`

	// Server identifies the implementation in the initialize result
	Server ServerInfo `json:"server"`

	// Instructions is returned to clients by initialize
	Instructions string `json:"instructions,omitempty"`

	// Sources lists the catalog sources in merge order
	Sources []catalog.Source `json:"sources"`

	// Remote configures fetching of http(s) sources
	Remote Remote `json:"remote"`

	// MaxBodyBytes bounds a POST /mcp request body
	MaxBodyBytes int64 `json:"maxBodyBytes"`

	// Sessions bounds the HTTP session table
	Sessions Sessions `json:"sessions"`
}

// Sessions configures how long idle HTTP sessions live and how many may
// exist at once
type Sessions struct {
	Timeout Duration `json:"timeout"`
	Max     int      `json:"max"`
}

// ServerInfo is the name and version reported to clients
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Remote configures the HTTP client used for remote catalog sources
type Remote struct {
	Retries int      `json:"retries"`
	Timeout Duration `json:"timeout"`

	// Headers are sent with every remote request. Values may be secret
	// references (op://... or env:NAME).
	Headers map[string]string `json:"headers,omitempty"`
}

// Duration is a time.Duration written as a string such as "30s"
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("duration must be a string such as \"30s\" or a number of seconds")
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Listen: ":8000",
		Server: ServerInfo{
			Name:    "toolcatalog",
			Version: "dev",
		},
		Sources: []catalog.Source{},
		Remote: Remote{
			Retries: 3,
			Timeout: Duration(60 * time.Second),
			Headers: map[string]string{},
		},
		MaxBodyBytes: 1 << 20,
		Sessions: Sessions{
			Timeout: Duration(30 * time.Minute),
			Max:     10000,
		},
	}
}

// LoadFile loads configuration from a file. An empty path yields the
// default configuration.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load loads configuration from an io.Reader. The data may be YAML or JSON;
// fields not set keep their defaults and unknown fields are rejected.
func Load(r io.Reader) (*Config, error) {
	config := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading config data: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if raw == nil {
		return config, nil
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, errors.New("error parsing config: top level must be a mapping")
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(normalized))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that decoding alone cannot
func (c *Config) Validate() error {
	if c.Remote.Retries < 0 {
		return errors.New("remote.retries must not be negative")
	}
	if c.Remote.Timeout < 0 {
		return errors.New("remote.timeout must not be negative")
	}
	if c.MaxBodyBytes < 0 {
		return errors.New("maxBodyBytes must not be negative")
	}
	if c.Sessions.Timeout < 0 {
		return errors.New("sessions.timeout must not be negative")
	}
	if c.Sessions.Max < 0 {
		return errors.New("sessions.max must not be negative")
	}
	for i, src := range c.Sources {
		if strings.TrimSpace(src.Location) == "" {
			return fmt.Errorf("sources[%d]: location is required", i)
		}
		format, err := catalog.ParseFormat(string(src.Format))
		if err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		c.Sources[i].Format = format
	}
	return nil
}

// ApplyEnv overrides configuration from the environment. PORT replaces the
// port of the listen address and keeps its host.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	port := getenv("PORT")
	if port == "" {
		return nil
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid PORT %q", port)
	}

	host, _, err := net.SplitHostPort(c.Listen)
	if err != nil {
		host = ""
	}
	c.Listen = net.JoinHostPort(host, port)
	return nil
}
