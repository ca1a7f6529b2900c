package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	LogFormat string          `json:"log_format" yaml:"log_format"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Parser    ParserConfig    `json:"parser" yaml:"parser"`
	Detection DetectionConfig `json:"detection" yaml:"detection"`
	Delivery  DeliveryConfig  `json:"delivery" yaml:"delivery"`
	API       APIConfig       `json:"api" yaml:"api"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Alerts    AlertsConfig    `json:"alerts" yaml:"alerts"`
}

type IngestConfig struct {
	ChannelBuffer int             `json:"channel_buffer" yaml:"channel_buffer"`
	Stdin         StdinConfig     `json:"stdin" yaml:"stdin"`
	FileTail      FileTailConfig  `json:"file_tail" yaml:"file_tail"`
	Syslog        SyslogConfig    `json:"syslog" yaml:"syslog"`
	TCPStream     TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
	Kafka         KafkaConfig     `json:"kafka" yaml:"kafka"`
	REST          RESTConfig      `json:"rest" yaml:"rest"`
}

type StdinConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type FileTailConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	StartAtEnd bool     `json:"start_at_end" yaml:"start_at_end"`
	Files      []string `json:"files" yaml:"files"`
}

type SyslogConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	UDPAddr string `json:"udp_addr" yaml:"udp_addr"`
	TCPAddr string `json:"tcp_addr" yaml:"tcp_addr"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type ParserConfig struct {
	MaxLineLength  int      `json:"max_line_length" yaml:"max_line_length"`
	Timezone       string   `json:"timezone" yaml:"timezone"`
	FailureMarkers []string `json:"failure_markers" yaml:"failure_markers"`
	SuccessMarkers []string `json:"success_markers" yaml:"success_markers"`
}

// OverflowPolicy controls what happens when the tracked-identity map is full.
type OverflowPolicy string

const (
	// OverflowEvictOldest drops the least-recently-seen identity to make room.
	OverflowEvictOldest OverflowPolicy = "evict_oldest"
	// OverflowReject refuses to track new identities while the map is full.
	OverflowReject OverflowPolicy = "reject"
)

type DetectionConfig struct {
	WindowDuration time.Duration  `json:"window_duration" yaml:"window_duration"`
	EvictionGrace  time.Duration  `json:"eviction_grace" yaml:"eviction_grace"`
	Threshold      int            `json:"threshold" yaml:"threshold"`
	ResetOnSuccess bool           `json:"reset_on_success" yaml:"reset_on_success"`
	MaxIdentities  int            `json:"max_identities" yaml:"max_identities"`
	OverflowPolicy OverflowPolicy `json:"overflow_policy" yaml:"overflow_policy"`
	SweepInterval  time.Duration  `json:"sweep_interval" yaml:"sweep_interval"`
	MaxClockSkew   time.Duration  `json:"max_clock_skew" yaml:"max_clock_skew"`
	MaxFutureSkew  time.Duration  `json:"max_future_skew" yaml:"max_future_skew"`
}

type DeliveryConfig struct {
	QueueSize int                 `json:"queue_size" yaml:"queue_size"`
	Stdout    StdoutSinkConfig    `json:"stdout" yaml:"stdout"`
	File      FileSinkConfig      `json:"file" yaml:"file"`
	Webhook   WebhookSinkConfig   `json:"webhook" yaml:"webhook"`
	Kafka     KafkaProducerConfig `json:"kafka" yaml:"kafka"`
}

type StdoutSinkConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type FileSinkConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

type WebhookSinkConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type KafkaProducerConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Ingest: IngestConfig{
			ChannelBuffer: 10000,
			Stdin:         StdinConfig{Enabled: false},
			FileTail:      FileTailConfig{Enabled: false, StartAtEnd: true},
			Syslog:        SyslogConfig{Enabled: false, UDPAddr: ":5514", TCPAddr: ":5514"},
			TCPStream:     TCPStreamConfig{Enabled: false, Addr: ":9000"},
			Kafka:         KafkaConfig{Enabled: false},
			REST:          RESTConfig{Enabled: false, Addr: ":8080"},
		},
		Parser: ParserConfig{
			MaxLineLength: 8192,
			Timezone:      "UTC",
			FailureMarkers: []string{
				"Failed password",
				"Failed login",
				"authentication failure",
			},
			SuccessMarkers: []string{
				"Accepted password",
				"Accepted publickey",
				"Accepted login",
			},
		},
		Detection: DetectionConfig{
			WindowDuration: 60 * time.Second,
			EvictionGrace:  0, // filled in as 2 * window_duration
			Threshold:      3,
			ResetOnSuccess: false,
			MaxIdentities:  100000,
			OverflowPolicy: OverflowEvictOldest,
			SweepInterval:  30 * time.Second,
			MaxClockSkew:   24 * time.Hour,
			MaxFutureSkew:  2 * time.Second,
		},
		Delivery: DeliveryConfig{
			QueueSize: 1024,
			Stdout:    StdoutSinkConfig{Enabled: true},
			File:      FileSinkConfig{Enabled: false},
			Webhook:   WebhookSinkConfig{Enabled: false, Timeout: 5 * time.Second},
			Kafka:     KafkaProducerConfig{Enabled: false},
		},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:authwatch.db?_pragma=busy_timeout(5000)"},
		Alerts:  AlertsConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 10000
	}
	if cfg.Parser.MaxLineLength == 0 {
		cfg.Parser.MaxLineLength = 8192
	}
	if cfg.Parser.Timezone == "" {
		cfg.Parser.Timezone = "UTC"
	}
	if len(cfg.Parser.FailureMarkers) == 0 {
		cfg.Parser.FailureMarkers = DefaultConfig().Parser.FailureMarkers
	}
	if len(cfg.Parser.SuccessMarkers) == 0 {
		cfg.Parser.SuccessMarkers = DefaultConfig().Parser.SuccessMarkers
	}
	if cfg.Detection.EvictionGrace == 0 && cfg.Detection.WindowDuration > 0 {
		cfg.Detection.EvictionGrace = 2 * cfg.Detection.WindowDuration
	}
	if cfg.Detection.MaxIdentities == 0 {
		cfg.Detection.MaxIdentities = 100000
	}
	if cfg.Detection.OverflowPolicy == "" {
		cfg.Detection.OverflowPolicy = OverflowEvictOldest
	}
	if cfg.Detection.SweepInterval == 0 {
		cfg.Detection.SweepInterval = 30 * time.Second
	}
	if cfg.Delivery.QueueSize <= 0 {
		cfg.Delivery.QueueSize = 1024
	}
	if cfg.Delivery.Webhook.Timeout <= 0 {
		cfg.Delivery.Webhook.Timeout = 5 * time.Second
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
}

// Validate refuses nonsensical policy. Errors here are fatal at startup:
// the process must not run with a broken detection configuration.
func Validate(cfg *Config) error {
	if cfg.Detection.Threshold <= 0 {
		return errors.New("detection.threshold must be > 0")
	}
	if cfg.Detection.WindowDuration <= 0 {
		return errors.New("detection.window_duration must be > 0")
	}
	if cfg.Detection.EvictionGrace <= 0 {
		return errors.New("detection.eviction_grace must be > 0")
	}
	if cfg.Detection.MaxIdentities <= 0 {
		return errors.New("detection.max_identities must be > 0")
	}
	switch cfg.Detection.OverflowPolicy {
	case OverflowEvictOldest, OverflowReject:
	default:
		return fmt.Errorf("detection.overflow_policy must be %q or %q", OverflowEvictOldest, OverflowReject)
	}
	if cfg.Parser.MaxLineLength <= 0 {
		return errors.New("parser.max_line_length must be > 0")
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.Syslog.Enabled && cfg.Ingest.Syslog.UDPAddr == "" && cfg.Ingest.Syslog.TCPAddr == "" {
		return errors.New("ingest.syslog.udp_addr or tcp_addr required when ingest.syslog.enabled is true")
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when ingest.tcp_stream.enabled is true")
	}
	if cfg.Ingest.FileTail.Enabled && len(cfg.Ingest.FileTail.Files) == 0 {
		return errors.New("ingest.file_tail.files required when ingest.file_tail.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Delivery.Webhook.Enabled && cfg.Delivery.Webhook.URL == "" {
		return errors.New("delivery.webhook.url required when delivery.webhook.enabled is true")
	}
	if cfg.Delivery.File.Enabled && cfg.Delivery.File.Path == "" {
		return errors.New("delivery.file.path required when delivery.file.enabled is true")
	}
	if cfg.Delivery.Kafka.Enabled {
		if len(cfg.Delivery.Kafka.Brokers) == 0 || cfg.Delivery.Kafka.Topic == "" {
			return errors.New("delivery.kafka requires brokers and topic")
		}
	}
	if cfg.Storage.Enabled {
		switch strings.ToLower(cfg.Storage.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			return fmt.Errorf("storage.driver %q not supported", cfg.Storage.Driver)
		}
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	if info, err := os.Stat(path); err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps an already validated config with no backing file.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
