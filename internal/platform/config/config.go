package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverKafka    = "kafka"
	DriverLog      = "log"
)

type Config struct {
	APIPort   string
	LogLevel  string
	LogFormat string

	JWTKey        []byte
	JWTExp        time.Duration
	BcryptCost    int
	ResetTokenTTL time.Duration
	DueSoonDays   int

	StorageDriver string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSslMode     string
	DBConnStr     string
	DBAutoMigrate bool

	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EventQueue       string
	EventQueueName   string
	EventQueueSize   int
	EventMaxAttempts int
	EventPublisher   string
	KafkaBrokers     []string
	KafkaTopicPrefix string

	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// fileConfig is the YAML layout accepted by --config.
type fileConfig struct {
	Server struct {
		Port      string `yaml:"port"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret          string `yaml:"jwt_secret"`
		JWTExpirationHours int    `yaml:"jwt_expiration_hours"`
		BcryptCost         int    `yaml:"bcrypt_cost"`
		ResetTokenMinutes  int    `yaml:"reset_token_minutes"`
	} `yaml:"auth"`
	Storage struct {
		Driver      string `yaml:"driver"`
		AutoMigrate *bool  `yaml:"auto_migrate"`
		Postgres    struct {
			Host     string `yaml:"host"`
			Port     string `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Name     string `yaml:"name"`
			SslMode  string `yaml:"sslmode"`
		} `yaml:"postgres"`
	} `yaml:"storage"`
	Sessions struct {
		Store string `yaml:"store"`
	} `yaml:"sessions"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Events struct {
		Queue       string   `yaml:"queue"`
		QueueName   string   `yaml:"queue_name"`
		QueueSize   int      `yaml:"queue_size"`
		MaxAttempts int      `yaml:"max_attempts"`
		Publisher   string   `yaml:"publisher"`
		Brokers     []string `yaml:"kafka_brokers"`
		TopicPrefix string   `yaml:"kafka_topic_prefix"`
	} `yaml:"events"`
	Tasks struct {
		DueSoonDays int `yaml:"due_soon_days"`
	} `yaml:"tasks"`
}

func defaults() *Config {
	return &Config{
		APIPort:          "5000",
		LogLevel:         "info",
		LogFormat:        "text",
		JWTKey:           []byte("defaultsecret"),
		JWTExp:           24 * time.Hour,
		BcryptCost:       10,
		ResetTokenTTL:    time.Hour,
		DueSoonDays:      3,
		StorageDriver:    DriverMemory,
		DBHost:           "localhost",
		DBPort:           "5432",
		DBUser:           "user",
		DBPassword:       "password",
		DBName:           "taskmaster",
		DBSslMode:        "disable",
		DBAutoMigrate:    true,
		SessionStore:     DriverMemory,
		RedisAddr:        "localhost:6379",
		EventQueue:       DriverMemory,
		EventQueueName:   "taskmaster_events",
		EventQueueSize:   1024,
		EventMaxAttempts: 5,
		EventPublisher:   DriverLog,
		KafkaTopicPrefix: "taskmaster",
	}
}

// Load resolves configuration as defaults, then the optional YAML file at
// path, then .env, then the process environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var f fileConfig
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		cfg.applyFile(&f)
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment variables")
	}
	cfg.applyEnv()

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(f *fileConfig) {
	setString(&c.APIPort, f.Server.Port)
	setString(&c.LogLevel, f.Server.LogLevel)
	setString(&c.LogFormat, f.Server.LogFormat)
	if f.Auth.JWTSecret != "" {
		c.JWTKey = []byte(f.Auth.JWTSecret)
	}
	if f.Auth.JWTExpirationHours > 0 {
		c.JWTExp = time.Duration(f.Auth.JWTExpirationHours) * time.Hour
	}
	setInt(&c.BcryptCost, f.Auth.BcryptCost)
	if f.Auth.ResetTokenMinutes > 0 {
		c.ResetTokenTTL = time.Duration(f.Auth.ResetTokenMinutes) * time.Minute
	}
	setString(&c.StorageDriver, f.Storage.Driver)
	if f.Storage.AutoMigrate != nil {
		c.DBAutoMigrate = *f.Storage.AutoMigrate
	}
	setString(&c.DBHost, f.Storage.Postgres.Host)
	setString(&c.DBPort, f.Storage.Postgres.Port)
	setString(&c.DBUser, f.Storage.Postgres.User)
	setString(&c.DBPassword, f.Storage.Postgres.Password)
	setString(&c.DBName, f.Storage.Postgres.Name)
	setString(&c.DBSslMode, f.Storage.Postgres.SslMode)
	setString(&c.SessionStore, f.Sessions.Store)
	setString(&c.RedisAddr, f.Redis.Addr)
	setString(&c.RedisPassword, f.Redis.Password)
	setInt(&c.RedisDB, f.Redis.DB)
	setString(&c.EventQueue, f.Events.Queue)
	setString(&c.EventQueueName, f.Events.QueueName)
	setInt(&c.EventQueueSize, f.Events.QueueSize)
	setInt(&c.EventMaxAttempts, f.Events.MaxAttempts)
	setString(&c.EventPublisher, f.Events.Publisher)
	if len(f.Events.Brokers) > 0 {
		c.KafkaBrokers = f.Events.Brokers
	}
	setString(&c.KafkaTopicPrefix, f.Events.TopicPrefix)
	setInt(&c.DueSoonDays, f.Tasks.DueSoonDays)
}

func (c *Config) applyEnv() {
	c.APIPort = getEnv("API_PORT", getEnv("PORT", c.APIPort))
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.JWTKey = []byte(getEnv("JWT_SECRET", string(c.JWTKey)))
	c.JWTExp = time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", int(c.JWTExp.Hours()))) * time.Hour
	c.BcryptCost = getEnvAsInt("BCRYPT_COST", c.BcryptCost)
	c.ResetTokenTTL = time.Duration(getEnvAsInt("RESET_TOKEN_TTL_MINUTES", int(c.ResetTokenTTL.Minutes()))) * time.Minute
	c.DueSoonDays = getEnvAsInt("DUE_SOON_DAYS", c.DueSoonDays)

	c.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", c.StorageDriver))
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBSslMode = getEnv("DB_SSLMODE", c.DBSslMode)
	c.DBAutoMigrate = getEnvAsBool("DB_AUTO_MIGRATE", c.DBAutoMigrate)

	c.SessionStore = strings.ToLower(getEnv("SESSION_STORE", c.SessionStore))
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvAsInt("REDIS_DB", c.RedisDB)

	c.EventQueue = strings.ToLower(getEnv("EVENT_QUEUE", c.EventQueue))
	c.EventQueueName = getEnv("EVENT_QUEUE_NAME", c.EventQueueName)
	c.EventQueueSize = getEnvAsInt("EVENT_QUEUE_SIZE", c.EventQueueSize)
	c.EventMaxAttempts = getEnvAsInt("EVENT_MAX_ATTEMPTS", c.EventMaxAttempts)
	c.EventPublisher = strings.ToLower(getEnv("EVENT_PUBLISHER", c.EventPublisher))
	c.KafkaBrokers = getEnvAsList("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopicPrefix = getEnv("KAFKA_TOPIC_PREFIX", c.KafkaTopicPrefix)

	c.AdminUsername = getEnv("ADMIN_USERNAME", c.AdminUsername)
	c.AdminEmail = getEnv("ADMIN_EMAIL", c.AdminEmail)
	c.AdminPassword = getEnv("ADMIN_PASSWORD", c.AdminPassword)
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTKey) == 0 {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.JWTExp <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_HOURS must be positive"))
	}
	if c.StorageDriver != DriverMemory && c.StorageDriver != DriverPostgres {
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.SessionStore != DriverMemory && c.SessionStore != DriverRedis {
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore))
	}
	if c.EventQueue != DriverMemory && c.EventQueue != DriverRedis {
		errs = append(errs, fmt.Errorf("unknown EVENT_QUEUE %q", c.EventQueue))
	}
	switch c.EventPublisher {
	case DriverLog:
	case DriverKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENT_PUBLISHER=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENT_PUBLISHER %q", c.EventPublisher))
	}
	if c.EventQueueSize <= 0 {
		errs = append(errs, errors.New("EVENT_QUEUE_SIZE must be positive"))
	}
	if c.DueSoonDays < 0 {
		errs = append(errs, errors.New("DUE_SOON_DAYS must not be negative"))
	}
	return errors.Join(errs...)
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.SessionStore == DriverRedis || c.EventQueue == DriverRedis
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
