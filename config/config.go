package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // timezones resolve in minimal containers

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. PARKINGD_SERVER_PORT.
const EnvPrefix = "PARKINGD_"

// Config represents the overall application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server" envPrefix:"SERVER_"`
	Database     DatabaseConfig     `yaml:"database" envPrefix:"DATABASE_"`
	MQTT         MQTTConfig         `yaml:"mqtt" envPrefix:"MQTT_"`
	Parking      ParkingConfig      `yaml:"parking" envPrefix:"PARKING_"`
	Billing      BillingConfig      `yaml:"billing" envPrefix:"BILLING_"`
	Notification NotificationConfig `yaml:"notification" envPrefix:"NOTIFICATION_"`
	Simulator    SimulatorConfig    `yaml:"simulator" envPrefix:"SIMULATOR_"`
	Log          LogConfig          `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" env:"PORT"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" env:"RATE_LIMIT_PER_SEC"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// DatabaseConfig holds the database connection configuration.
// A DSN starting with postgres:// (or containing host=) selects PostgreSQL,
// anything else is treated as a SQLite file path.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn" env:"DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns           int    `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" env:"CONN_MAX_LIFETIME_MINUTES"`
	LogSQL                 bool   `yaml:"log_sql" env:"LOG_SQL"`
}

// MQTTConfig holds the broker connection used for sensor telemetry.
type MQTTConfig struct {
	Enabled               bool     `yaml:"enabled" env:"ENABLED"`
	Broker                string   `yaml:"broker" env:"BROKER"`
	ClientID              string   `yaml:"client_id" env:"CLIENT_ID"`
	Username              string   `yaml:"username" env:"USERNAME"`
	Password              string   `yaml:"password" env:"PASSWORD"`
	QoS                   int      `yaml:"qos" env:"QOS"`
	Topics                []string `yaml:"topics" env:"TOPICS"`
	ConnectTimeoutSeconds int      `yaml:"connect_timeout_seconds" env:"CONNECT_TIMEOUT_SECONDS"`

	ConnectTimeout time.Duration `yaml:"-"`
}

// ParkingConfig describes the tracked spots and the sensor thresholds.
// DistanceThreshold and DeltaThreshold are independent: firmware variants
// report them in different units.
type ParkingConfig struct {
	TotalSpots        int     `yaml:"total_spots" env:"TOTAL_SPOTS"`
	SensorSpots       []int64 `yaml:"sensor_spots" env:"SENSOR_SPOTS"`
	DistanceThreshold float64 `yaml:"distance_threshold" env:"DISTANCE_THRESHOLD"`
	DeltaThreshold    float64 `yaml:"delta_threshold" env:"DELTA_THRESHOLD"`
	Timezone          string  `yaml:"timezone" env:"TIMEZONE"`

	Location *time.Location `yaml:"-"`
}

// BillingConfig holds the client session tariff.
type BillingConfig struct {
	BaseFee    float64 `yaml:"base_fee" env:"BASE_FEE"`
	HourlyRate float64 `yaml:"hourly_rate" env:"HOURLY_RATE"`
}

// NotificationConfig groups the notification channels and their worker pool.
type NotificationConfig struct {
	WorkerPool WorkerPoolConfig `yaml:"worker_pool" envPrefix:"WORKER_POOL_"`
	Email      EmailConfig      `yaml:"email" envPrefix:"EMAIL_"`
	Push       PushConfig       `yaml:"push" envPrefix:"PUSH_"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size" env:"SIZE"`
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`
}

// EmailConfig holds the SMTP relay used for end-of-session emails.
// An empty Host disables the channel.
type EmailConfig struct {
	Host     string `yaml:"smtp_host" env:"SMTP_HOST"`
	Port     int    `yaml:"smtp_port" env:"SMTP_PORT"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	From     string `yaml:"from" env:"FROM"`
	To       string `yaml:"to" env:"TO"`
}

// PushConfig holds the VAPID keys for web push notifications.
// Empty keys disable the channel.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" env:"VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" env:"VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject" env:"SUBJECT"`
	TTL        int    `yaml:"ttl" env:"TTL"`
}

// SimulatorConfig configures the random-walk demo source.
type SimulatorConfig struct {
	AutoStart          bool    `yaml:"auto_start" env:"AUTO_START"`
	Spots              []int64 `yaml:"spots" env:"SPOTS"`
	MinIntervalSeconds int     `yaml:"min_interval_seconds" env:"MIN_INTERVAL_SECONDS"`
	MaxIntervalSeconds int     `yaml:"max_interval_seconds" env:"MAX_INTERVAL_SECONDS"`
	FlipProbability    float64 `yaml:"flip_probability" env:"FLIP_PROBABILITY"`
}

// LogConfig holds the logger configuration.
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Load reads the configuration from the given path, applies PARKINGD_*
// environment overrides and fills in defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return cfg.finish()
}

// LoadEnv builds the configuration from PARKINGD_* variables and defaults
// alone, for deployments without a config file.
func LoadEnv() (*Config, error) {
	var cfg Config
	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns a configuration with every default applied, for tests and
// for running without a config file.
func Default() *Config {
	var cfg Config
	// applyDefaults only fails on a bad timezone, and the default is UTC.
	_ = cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() error {
	if c.Server.Port <= 0 {
		c.Server.Port = 5000
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 10
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 20
	}

	if c.Database.DSN == "" {
		c.Database.DSN = "parking.db"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 2
	}
	if c.Database.ConnMaxLifetimeMinutes <= 0 {
		c.Database.ConnMaxLifetimeMinutes = 30
	}

	if c.Parking.TotalSpots <= 0 {
		c.Parking.TotalSpots = 2
	}
	if len(c.Parking.SensorSpots) == 0 {
		c.Parking.SensorSpots = []int64{1}
	}
	if c.Parking.DistanceThreshold <= 0 {
		c.Parking.DistanceThreshold = 1500
	}
	if c.Parking.DeltaThreshold <= 0 {
		c.Parking.DeltaThreshold = 2000
	}
	if c.Parking.Timezone == "" {
		c.Parking.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(c.Parking.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", c.Parking.Timezone, err)
	}
	c.Parking.Location = loc

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://broker.hivemq.com:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "parkingd"
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		c.MQTT.QoS = 0
	}
	if len(c.MQTT.Topics) == 0 {
		c.MQTT.Topics = DefaultTopics(c.Parking.TotalSpots)
	}
	if c.MQTT.ConnectTimeoutSeconds <= 0 {
		c.MQTT.ConnectTimeoutSeconds = 10
	}
	c.MQTT.ConnectTimeout = time.Duration(c.MQTT.ConnectTimeoutSeconds) * time.Second

	if c.Billing.BaseFee <= 0 {
		c.Billing.BaseFee = 10
	}
	if c.Billing.HourlyRate <= 0 {
		c.Billing.HourlyRate = 2
	}

	if c.Notification.WorkerPool.Size <= 0 {
		c.Notification.WorkerPool.Size = 1
	}
	if c.Notification.WorkerPool.QueueSize <= 0 {
		c.Notification.WorkerPool.QueueSize = 64
	}
	if c.Notification.Email.Port <= 0 {
		c.Notification.Email.Port = 1025
	}
	if c.Notification.Push.TTL <= 0 {
		c.Notification.Push.TTL = 3600
	}

	if len(c.Simulator.Spots) == 0 {
		c.Simulator.Spots = []int64{int64(c.Parking.TotalSpots)}
	}
	if c.Simulator.MinIntervalSeconds <= 0 {
		c.Simulator.MinIntervalSeconds = 5
	}
	if c.Simulator.MaxIntervalSeconds < c.Simulator.MinIntervalSeconds {
		c.Simulator.MaxIntervalSeconds = c.Simulator.MinIntervalSeconds + 5
	}
	if c.Simulator.FlipProbability <= 0 || c.Simulator.FlipProbability > 1 {
		c.Simulator.FlipProbability = 0.5
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return nil
}

// Validate rejects configurations that would reference spots outside 1..TotalSpots.
func (c *Config) Validate() error {
	for _, id := range c.Parking.SensorSpots {
		if id < 1 || id > int64(c.Parking.TotalSpots) {
			return fmt.Errorf("parking.sensor_spots: spot %d is outside 1..%d", id, c.Parking.TotalSpots)
		}
	}
	for _, id := range c.Simulator.Spots {
		if id < 1 || id > int64(c.Parking.TotalSpots) {
			return fmt.Errorf("simulator.spots: spot %d is outside 1..%d", id, c.Parking.TotalSpots)
		}
	}
	return nil
}

// DefaultTopics returns the subscriptions used when none are configured:
// the per-spot firmware topics plus the wildcard plain-payload topics.
func DefaultTopics(totalSpots int) []string {
	topics := make([]string, 0, totalSpots+3)
	for i := 1; i <= totalSpots; i++ {
		topics = append(topics, fmt.Sprintf("/vaga%d/status", i))
	}
	return append(topics, "vaga/+/status", "vaga/+/distancia", "vaga/+/diferenca")
}

// MinInterval returns the shortest simulator step.
func (s SimulatorConfig) MinInterval() time.Duration {
	return time.Duration(s.MinIntervalSeconds) * time.Second
}

// MaxInterval returns the longest simulator step.
func (s SimulatorConfig) MaxInterval() time.Duration {
	return time.Duration(s.MaxIntervalSeconds) * time.Second
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}
