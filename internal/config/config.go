package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ReceiverConfig holds the listener and replay settings.
type ReceiverConfig struct {
	WorkAddr         string `yaml:"work_addr"`
	CommAddr         string `yaml:"comm_addr"`
	NumWorkers       int    `yaml:"num_workers"`
	PollInterval     string `yaml:"poll_interval"`
	ReadTimeout      string `yaml:"read_timeout"`
	ReadBufferSize   int    `yaml:"read_buffer_size"`
	MaxFrameSize     int    `yaml:"max_frame_size"`
	MaxFramesPerPoll int    `yaml:"max_frames_per_poll"`
	ReferenceWorker  int    `yaml:"reference_worker"`
}

// EngineConfig holds the aggregation exchange settings.
type EngineConfig struct {
	NumShards           int `yaml:"num_shards"`
	ShardBatchSize      int `yaml:"shard_batch_size"`
	SizeOfDeltaChannel  int `yaml:"size_of_delta_channel"`
	SizeOfReportChannel int `yaml:"size_of_report_channel"`
}

// TextConfig configures the line-oriented text sink.
type TextConfig struct {
	// Path of the output file. Empty means stdout.
	Path string `yaml:"path"`
}

// NATSConfig configures the NATS sink.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SinkDef defines a single report sink.
type SinkDef struct {
	Type    string     `yaml:"type"`
	Enabled bool       `yaml:"enabled"`
	Text    TextConfig `yaml:"text"`
	NATS    NATSConfig `yaml:"nats"`
}

// ReporterConfig lists the sinks every report is delivered to.
type ReporterConfig struct {
	Sinks []SinkDef `yaml:"sinks"`
}

// APIConfig holds the query and health endpoints.
type APIConfig struct {
	Enabled        bool   `yaml:"enabled"`
	HTTPListenAddr string `yaml:"http_listen_addr"`
	GRPCListenAddr string `yaml:"grpc_listen_addr"`
}

// AlerterRule defines a single threshold rule over a report category.
type AlerterRule struct {
	Name      string  `yaml:"name"`
	Category  string  `yaml:"category"`
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AlerterConfig holds the alerter settings.
type AlerterConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval string        `yaml:"check_interval"`
	Rules         []AlerterRule `yaml:"rules"`
}

// SMTPConfig holds the e-mail notifier settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Receiver ReceiverConfig `yaml:"receiver"`
	Engine   EngineConfig   `yaml:"engine"`
	Reporter ReporterConfig `yaml:"reporter"`
	API      APIConfig      `yaml:"api"`
	Alerter  AlerterConfig  `yaml:"alerter"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Receiver: ReceiverConfig{
			WorkAddr:         "0.0.0.0:8000",
			CommAddr:         "0.0.0.0:9000",
			NumWorkers:       4,
			PollInterval:     "5ms",
			ReadTimeout:      "1ms",
			ReadBufferSize:   64 << 10,
			MaxFrameSize:     16 << 20,
			MaxFramesPerPoll: 64,
		},
		Engine: EngineConfig{
			ShardBatchSize:      256,
			SizeOfDeltaChannel:  4096,
			SizeOfReportChannel: 4096,
		},
		Reporter: ReporterConfig{
			Sinks: []SinkDef{{Type: "text", Enabled: true}},
		},
		API: APIConfig{
			HTTPListenAddr: "0.0.0.0:8080",
			GRPCListenAddr: "0.0.0.0:8081",
		},
		Alerter: AlerterConfig{
			CheckInterval: "30s",
		},
	}
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
// Fields missing from the file keep their Default values.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be corrected silently.
func (c *Config) Validate() error {
	if c.Receiver.NumWorkers <= 0 {
		return fmt.Errorf("receiver num_workers must be positive, got %d", c.Receiver.NumWorkers)
	}
	if c.Receiver.ReferenceWorker < 0 {
		return fmt.Errorf("receiver reference_worker must not be negative, got %d", c.Receiver.ReferenceWorker)
	}
	if c.Receiver.MaxFrameSize <= 0 {
		return fmt.Errorf("receiver max_frame_size must be positive, got %d", c.Receiver.MaxFrameSize)
	}
	if c.Receiver.ReadBufferSize <= 0 {
		return fmt.Errorf("receiver read_buffer_size must be positive, got %d", c.Receiver.ReadBufferSize)
	}
	if c.Receiver.MaxFramesPerPoll <= 0 {
		return fmt.Errorf("receiver max_frames_per_poll must be positive, got %d", c.Receiver.MaxFramesPerPoll)
	}
	if c.Engine.NumShards < 0 {
		return fmt.Errorf("engine num_shards must not be negative, got %d", c.Engine.NumShards)
	}
	if c.Engine.ShardBatchSize < 0 {
		return fmt.Errorf("engine shard_batch_size must not be negative, got %d", c.Engine.ShardBatchSize)
	}
	if c.Engine.SizeOfDeltaChannel < 0 {
		return fmt.Errorf("engine size_of_delta_channel must not be negative, got %d", c.Engine.SizeOfDeltaChannel)
	}
	if c.Engine.SizeOfReportChannel < 0 {
		return fmt.Errorf("engine size_of_report_channel must not be negative, got %d", c.Engine.SizeOfReportChannel)
	}
	if _, err := c.Receiver.PollDuration(); err != nil {
		return err
	}
	if _, err := c.Receiver.ReadDeadline(); err != nil {
		return err
	}
	if c.Alerter.Enabled {
		if _, err := time.ParseDuration(c.Alerter.CheckInterval); err != nil {
			return fmt.Errorf("invalid alerter check_interval: %w", err)
		}
	}
	return nil
}

// PollDuration is how long a worker yields when none of its connections had data.
func (r ReceiverConfig) PollDuration() (time.Duration, error) {
	d, err := time.ParseDuration(r.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid receiver poll_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("receiver poll_interval must not be negative")
	}
	return d, nil
}

// ReadDeadline bounds a single non-blocking read attempt.
func (r ReceiverConfig) ReadDeadline() (time.Duration, error) {
	d, err := time.ParseDuration(r.ReadTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid receiver read_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("receiver read_timeout must be a positive duration")
	}
	return d, nil
}

// Shards returns the number of aggregation shards, defaulting to one per worker.
func (e EngineConfig) Shards(numWorkers int) int {
	if e.NumShards > 0 {
		return e.NumShards
	}
	return numWorkers
}
