package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Ledger    LedgerConfig
	Outbound  OutboundConfig
	Threshold ThresholdConfig
}

type ServerConfig struct {
	AppEnv          string
	HTTPPort        string
	GRPCPort        string
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers            []string
	PurchaseOrderTopic string
	GroupID            string
	NotificationTopic  string
}

type LedgerConfig struct {
	MaxWriteRetries int
	// EnforceNegativeFloor rejects decreases that would take on_hand below
	// -NegativeStockFloor. Off means negative stock is only logged.
	EnforceNegativeFloor bool
	NegativeStockFloor   int64
}

type OutboundConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	TaskTimeout time.Duration
}

type ThresholdConfig struct {
	SweepSchedule  string
	SweepBatchSize int
	StaleAfter     time.Duration
	AlertTTL       time.Duration
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:          getEnv("APP_ENV", "dev"),
			HTTPPort:        getEnv("HTTP_PORT", ":8080"),
			GRPCPort:        getEnv("GRPC_PORT", ":8082"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_inventory"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:            getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			PurchaseOrderTopic: getEnv("KAFKA_TOPIC_PURCHASE_ORDERS", "purchase-orders.events"),
			GroupID:            getEnv("KAFKA_GROUP_INVENTORY", "inventory-ledger"),
			NotificationTopic:  getEnv("KAFKA_TOPIC_NOTIFICATIONS", "notifications.inventory"),
		},
		Ledger: LedgerConfig{
			MaxWriteRetries:      getEnvInt("LEDGER_MAX_WRITE_RETRIES", 3),
			EnforceNegativeFloor: getEnvBool("LEDGER_ENFORCE_NEGATIVE_FLOOR", false),
			NegativeStockFloor:   int64(getEnvInt("LEDGER_NEGATIVE_STOCK_FLOOR", 0)),
		},
		Outbound: OutboundConfig{
			Workers:     getEnvInt("OUTBOUND_WORKERS", 4),
			QueueSize:   getEnvInt("OUTBOUND_QUEUE_SIZE", 1024),
			MaxAttempts: getEnvInt("OUTBOUND_MAX_ATTEMPTS", 3),
			TaskTimeout: getEnvDuration("OUTBOUND_TASK_TIMEOUT", 10*time.Second),
		},
		Threshold: ThresholdConfig{
			SweepSchedule:  getEnv("THRESHOLD_SWEEP_SCHEDULE", "@every 15m"),
			SweepBatchSize: getEnvInt("THRESHOLD_SWEEP_BATCH_SIZE", 500),
			StaleAfter:     getEnvDuration("THRESHOLD_STALE_AFTER", time.Hour),
			AlertTTL:       getEnvDuration("THRESHOLD_ALERT_TTL", 24*time.Hour),
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.HTTPPort == "" {
		errs = append(errs, errors.New("HTTP_PORT must be set"))
	}
	if len(c.Kafka.Brokers) == 0 || c.Kafka.Brokers[0] == "" {
		errs = append(errs, errors.New("KAFKA_BROKERS must be set"))
	}
	if c.Ledger.MaxWriteRetries < 0 {
		errs = append(errs, fmt.Errorf("LEDGER_MAX_WRITE_RETRIES must be >= 0, got %d", c.Ledger.MaxWriteRetries))
	}
	if c.Ledger.NegativeStockFloor < 0 {
		errs = append(errs, fmt.Errorf("LEDGER_NEGATIVE_STOCK_FLOOR must be >= 0, got %d", c.Ledger.NegativeStockFloor))
	}
	if c.Outbound.Workers < 0 {
		errs = append(errs, fmt.Errorf("OUTBOUND_WORKERS must be >= 0, got %d", c.Outbound.Workers))
	}
	if c.Outbound.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("OUTBOUND_MAX_ATTEMPTS must be >= 1, got %d", c.Outbound.MaxAttempts))
	}
	if c.Threshold.SweepBatchSize < 1 {
		errs = append(errs, fmt.Errorf("THRESHOLD_SWEEP_BATCH_SIZE must be >= 1, got %d", c.Threshold.SweepBatchSize))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "dev" || c.Server.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
