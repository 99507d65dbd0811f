package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		MetricsPath     string        `yaml:"metrics_path" default:"/metrics"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Feed struct {
		Exchange       string        `yaml:"exchange" default:"binance" validate:"oneof=binance"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://stream.binance.com:9443" validate:"required"`
		RESTURL        string        `yaml:"rest_url" default:"https://api.binance.com" validate:"required"`
		Symbols        []string      `yaml:"symbols" validate:"required,min=1,dive,required"`
		MaxDepth       int           `yaml:"max_depth" default:"30" validate:"gt=0"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"3m"`
		RESTTimeout    time.Duration `yaml:"rest_timeout" default:"10s"`
	} `yaml:"feed"`
	Publish struct {
		TopicPrefix string   `yaml:"topic_prefix" default:"crypto" validate:"required"`
		Exchanges   []string `yaml:"exchanges" validate:"required,min=1"`
		Datatypes   []string `yaml:"datatypes" validate:"required,min=1,dive,oneof=l2 ticker trades factors"`
	} `yaml:"publish"`
	Factor struct {
		Window time.Duration `yaml:"window" default:"1s" validate:"gt=0"`
	} `yaml:"factor"`
	Bus struct {
		Backend   string        `yaml:"backend" default:"kafka" validate:"oneof=kafka redis clickhouse"`
		QueueSize int           `yaml:"queue_size" default:"10000" validate:"gt=0"`
		BatchSize int           `yaml:"batch_size" default:"500" validate:"gt=0"`
		Linger    time.Duration `yaml:"linger" default:"100ms"`
	} `yaml:"bus"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		ClientID     string   `yaml:"client_id" default:"feedrelay"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"lz4" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"2500"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"true"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Addr         string `yaml:"addr" default:"localhost:6379"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		StreamMaxLen int64  `yaml:"stream_max_len" default:"100000"`
	} `yaml:"redis"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"bus_messages"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(b, nil)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(b, os.Getenv)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	return parse(b, nil)
}

func parse(b []byte, getenv func(string) string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if getenv != nil {
		c.applyEnv(getenv)
	}
	c.fillLists()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FEEDRELAY_SYMBOLS"); v != "" {
		c.Feed.Symbols = splitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("BUS_BACKEND"); v != "" {
		c.Bus.Backend = v
	}
	if v := getenv("TOPIC_PREFIX"); v != "" {
		c.Publish.TopicPrefix = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

// fillLists sets list defaults, which struct tags cannot express.
func (c *Config) fillLists() {
	if len(c.Feed.Symbols) == 0 {
		c.Feed.Symbols = []string{"BTC-USDT", "ETH-USDT"}
	}
	if len(c.Publish.Exchanges) == 0 {
		c.Publish.Exchanges = []string{"binance", "okx"}
	}
	if len(c.Publish.Datatypes) == 0 {
		c.Publish.Datatypes = []string{"l2", "ticker", "trades", "factors"}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Bus.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty with bus.backend=kafka")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
