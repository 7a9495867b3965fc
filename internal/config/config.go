// Package config loads the broker's immutable runtime configuration from
// YAML via gopkg.in/yaml.v3, filling in documented defaults for anything
// a config file omits.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTCPURL = "broker+tcp://0.0.0.0:1883"
	DefaultWSURL  = "nmq+ws://0.0.0.0:8083/mqtt"
	DefaultPIDPath = "/tmp/nanomq/nanomq.pid"
)

// WebsocketConfig controls the optional nmq+ws:// listener.
type WebsocketConfig struct {
	Enable bool   `yaml:"enable"`
	URL    string `yaml:"url"`
}

// HTTPServerConfig controls the optional admin HTTP server.
type HTTPServerConfig struct {
	Enable   bool   `yaml:"enable"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the main broker config, handed immutably to broker.New.
type Config struct {
	URL             string            `yaml:"url"`
	Parallel        int               `yaml:"parallel"`
	NumTaskQThread  int               `yaml:"num_taskq_thread"`
	MaxTaskQThread  int               `yaml:"max_taskq_thread"`
	PropertySize    int               `yaml:"property_size"`
	MsqLen          int               `yaml:"msq_len"`
	QoSDuration     int               `yaml:"qos_duration"`
	AllowAnonymous  bool              `yaml:"allow_anonymous"`
	Daemon          bool              `yaml:"daemon"`
	Websocket       WebsocketConfig   `yaml:"websocket"`
	HTTPServer      HTTPServerConfig  `yaml:"http_server"`
	PIDPath         string            `yaml:"pid_path"`
	SessionCacheTTL int               `yaml:"session_cache_ttl_seconds"`
}

// AuthEntry is one (username, password) pair from the auth config file.
type AuthEntry struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AuthConfig is the full flat username/password table.
type AuthConfig struct {
	Users []AuthEntry `yaml:"users"`
}

// SubscriptionEntry is one upstream topic the bridge subscribes to at
// connection time.
type SubscriptionEntry struct {
	Topic string `yaml:"topic"`
	QoS   byte   `yaml:"qos"`
}

// BridgeConfig configures the optional upstream forwarder.
type BridgeConfig struct {
	BridgeMode bool                `yaml:"bridge_mode"`
	Address    string              `yaml:"address"`
	ProtoVer   int                 `yaml:"proto_ver"`
	ClientID   string              `yaml:"clientid"`
	CleanStart bool                `yaml:"clean_start"`
	Username   string              `yaml:"username"`
	Password   string              `yaml:"password"`
	KeepAlive  uint16              `yaml:"keepalive"`
	Forwards   []string            `yaml:"forwards"`
	SubList    []SubscriptionEntry `yaml:"sub_list"`
	Parallel   int                 `yaml:"parallel"`
}

// Default returns a Config populated with nanolib's documented defaults.
func Default() *Config {
	return &Config{
		URL:            DefaultTCPURL,
		Parallel:       32,
		NumTaskQThread: 4,
		MaxTaskQThread: 8,
		PropertySize:   32,
		MsqLen:         64,
		QoSDuration:    30,
		AllowAnonymous: true,
		Websocket:      WebsocketConfig{Enable: false, URL: DefaultWSURL},
		PIDPath:        DefaultPIDPath,
		SessionCacheTTL: 3600,
	}
}

// Load reads and unmarshals a main config file, filling in defaults for
// anything the file omits.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAuth reads and unmarshals an auth config file.
func LoadAuth(path string) (*AuthConfig, error) {
	var cfg AuthConfig
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadBridge reads and unmarshals a bridge config file.
func LoadBridge(path string) (*BridgeConfig, error) {
	cfg := &BridgeConfig{ProtoVer: 5, Parallel: 4}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyFlags overlays CLI-flag overrides onto a loaded Config.
func (c *Config) ApplyFlags(url string, numTaskQ, maxTaskQ, parallel, propertySize, msqLen, qosDuration int, httpEnable bool, httpPort int) {
	if url != "" {
		c.URL = url
	}
	if numTaskQ > 0 {
		c.NumTaskQThread = numTaskQ
	}
	if maxTaskQ > 0 {
		c.MaxTaskQThread = maxTaskQ
	}
	if parallel > 0 {
		c.Parallel = parallel
	}
	if propertySize > 0 {
		c.PropertySize = propertySize
	}
	if msqLen > 0 {
		c.MsqLen = msqLen
	}
	if qosDuration > 0 {
		c.QoSDuration = qosDuration
	}
	if httpEnable {
		c.HTTPServer.Enable = true
	}
	if httpPort > 0 {
		c.HTTPServer.Port = httpPort
	}
}
