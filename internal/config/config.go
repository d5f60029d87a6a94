package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Lobby    LobbyConfig    `yaml:"lobby"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Sync     SyncConfig     `yaml:"sync"`
	Random   RandomConfig   `yaml:"random"`
	Chat     ChatConfig     `yaml:"chat"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// AuthConfig holds token verification configuration
type AuthConfig struct {
	JWTKey string `yaml:"jwt_key"`
}

// LobbyConfig holds realtime lobby tuning
type LobbyConfig struct {
	Timezone         string        `yaml:"timezone"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	StaleTimeout     time.Duration `yaml:"stale_timeout"`
	SendTimeout      time.Duration `yaml:"send_timeout"`
	OutboundQueue    int           `yaml:"outbound_queue"`
	ChallengeTimeout time.Duration `yaml:"challenge_timeout"`
	RateLimitMax     int           `yaml:"rate_limit_max"`
	RateLimitWindow  time.Duration `yaml:"rate_limit_window"`
	PresenceThrottle time.Duration `yaml:"presence_throttle"`
	LeaderboardEvery time.Duration `yaml:"leaderboard_every"`
	LeaderboardSize  int           `yaml:"leaderboard_size"`
	MaxChatBytes     int           `yaml:"max_chat_bytes"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds the reward topic configuration
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	GroupID       string        `yaml:"group_id"`
	Enabled       bool          `yaml:"enabled"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// SyncConfig holds the points sync worker configuration
type SyncConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
	Enabled   bool          `yaml:"enabled"`
}

// RandomConfig selects the randomness provider policy
type RandomConfig struct {
	// VerifiableForVIP switches role assignment and skill selection to
	// the verifiable source whenever a VIP participates.
	VerifiableForVIP bool `yaml:"verifiable_for_vip"`
}

// ChatConfig holds the content filter configuration
type ChatConfig struct {
	FilterMode string   `yaml:"filter_mode"` // "wordlist" or "passthrough"
	BlockWords []string `yaml:"block_words"`
	MaskWords  []string `yaml:"mask_words"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

// applyEnv honours the well-known environment surface of the lobby. A
// set variable always wins over the file value.
func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_KEY"); v != "" {
		c.Auth.JWTKey = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		c.Lobby.Timezone = v
	}
	if d, ok := envSeconds("WS_PING_INTERVAL_SEC"); ok {
		c.Lobby.PingInterval = d
	}
	if d, ok := envSeconds("WS_IDLE_TIMEOUT_SEC"); ok {
		c.Lobby.IdleTimeout = d
	}
	if d, ok := envSeconds("CHALLENGE_TIMEOUT_SEC"); ok {
		c.Lobby.ChallengeTimeout = d
	}
	if v := os.Getenv("RATE_LIMIT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Lobby.RateLimitMax = n
		}
	}
	if d, ok := envSeconds("RATE_LIMIT_WINDOW_SEC"); ok {
		c.Lobby.RateLimitWindow = d
	}
}

func envSeconds(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Lobby defaults
	if c.Lobby.Timezone == "" {
		c.Lobby.Timezone = "Asia/Ho_Chi_Minh"
	}
	if c.Lobby.PingInterval == 0 {
		c.Lobby.PingInterval = 30 * time.Second
	}
	if c.Lobby.IdleTimeout == 0 {
		c.Lobby.IdleTimeout = 60 * time.Second
	}
	if c.Lobby.StaleTimeout == 0 {
		c.Lobby.StaleTimeout = 1 * time.Hour
	}
	if c.Lobby.SendTimeout == 0 {
		c.Lobby.SendTimeout = 5 * time.Second
	}
	if c.Lobby.OutboundQueue == 0 {
		c.Lobby.OutboundQueue = 100
	}
	if c.Lobby.ChallengeTimeout == 0 {
		c.Lobby.ChallengeTimeout = 60 * time.Second
	}
	if c.Lobby.RateLimitMax == 0 {
		c.Lobby.RateLimitMax = 100
	}
	if c.Lobby.RateLimitWindow == 0 {
		c.Lobby.RateLimitWindow = 60 * time.Second
	}
	if c.Lobby.PresenceThrottle == 0 {
		c.Lobby.PresenceThrottle = 250 * time.Millisecond
	}
	if c.Lobby.LeaderboardEvery == 0 {
		c.Lobby.LeaderboardEvery = 5 * time.Minute
	}
	if c.Lobby.LeaderboardSize == 0 {
		c.Lobby.LeaderboardSize = 10
	}
	if c.Lobby.MaxChatBytes == 0 {
		c.Lobby.MaxChatBytes = 1000
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}
	if c.Postgres.CallTimeout == 0 {
		c.Postgres.CallTimeout = 5 * time.Second
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "kickin-rewards"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "kickin-reward-dispatcher"
	}
	if c.Kafka.RetryAttempts == 0 {
		c.Kafka.RetryAttempts = 3
	}
	if c.Kafka.RetryDelay == 0 {
		c.Kafka.RetryDelay = 1 * time.Second
	}

	// Sync defaults
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 30 * time.Minute
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = 1000
	}

	// Chat defaults
	if c.Chat.FilterMode == "" {
		c.Chat.FilterMode = "wordlist"
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	cfg.Sync.Enabled = true
	return cfg
}
