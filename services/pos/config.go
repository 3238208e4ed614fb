package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Backends aceitos em STORE_BACKEND
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMongo    = "mongo"
	StoreBackendMemory   = "memory"
)

// Config reúne a configuração do serviço, lida do ambiente
type Config struct {
	Port                string
	ShutdownTimeout     time.Duration
	StoreBackend        string
	SaleStockMaxRetries int
	IdempotencyTTL      time.Duration
	MaxImageBytes       int64

	Postgres  PostgresConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Mail      MailConfig
	Auth      AuthConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

type PostgresConfig struct {
	User            string
	Password        string
	Host            string
	Port            string
	Name            string
	MaxConns        int32
	ConnectAttempts int
}

// DSN monta a URL de conexão usada pelo pgx e pelo lib/pq
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers    []string
	SalesTopic string
}

type MailConfig struct {
	APIURL     string
	APIToken   string
	From       string
	Timeout    time.Duration
	RetryCount int
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	ResetTokenTTL time.Duration
	BcryptCost    int
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// loadConfig lê o ambiente aplicando os valores padrão
func loadConfig() (Config, error) {
	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
		SaleStockMaxRetries: getEnvInt("SALE_STOCK_MAX_RETRIES", defaultStockMaxRetries),
		IdempotencyTTL:      getEnvDuration("IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		MaxImageBytes:       int64(getEnvInt("MAX_IMAGE_BYTES", 5<<20)),
		Postgres: PostgresConfig{
			User:            getEnv("DATABASE_USER", "root"),
			Password:        getEnv("DATABASE_PASSWORD", "pos_pass"),
			Host:            getEnv("DATABASE_HOST", "localhost"),
			Port:            getEnv("DATABASE_PORT", "5432"),
			Name:            getEnv("DATABASE_NAME", "pos_db"),
			MaxConns:        int32(getEnvInt("DATABASE_MAX_CONNS", 10)),
			ConnectAttempts: getEnvInt("DATABASE_CONNECT_ATTEMPTS", 30),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "pos"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnvList("KAFKA_BROKERS"),
			SalesTopic: getEnv("KAFKA_SALES_TOPIC", "sales.recorded"),
		},
		Mail: MailConfig{
			APIURL:     getEnv("MAIL_API_URL", ""),
			APIToken:   getEnv("MAIL_API_TOKEN", ""),
			From:       getEnv("MAIL_FROM", "no-reply@pos.local"),
			Timeout:    getEnvDuration("MAIL_TIMEOUT", 10*time.Second),
			RetryCount: getEnvInt("MAIL_RETRY_COUNT", 2),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			TokenTTL:      getEnvDuration("JWT_TTL", 8*time.Hour),
			ResetTokenTTL: getEnvDuration("RESET_TOKEN_TTL", time.Hour),
			BcryptCost:    getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvBool("OTEL_ENABLED", true),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:  getEnv("SERVICE_NAME", serviceName),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres, StoreBackendMongo, StoreBackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// getEnvList lê uma lista separada por vírgulas, ignorando itens vazios
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
