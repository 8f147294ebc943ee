package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	storeDriverPostgres = "postgres"
	storeDriverMemory   = "memory"
)

// Config reúne a configuração do orders-service: arquivo YAML opcional sobrescrito por variáveis de ambiente
type Config struct {
	Port        string          `yaml:"port"`
	ServiceName string          `yaml:"service_name"`
	LogLevel    string          `yaml:"log_level"`
	StoreDriver string          `yaml:"store_driver"`
	Database    DatabaseConfig  `yaml:"database"`
	Payments    PaymentsConfig  `yaml:"payments"`
	Delivery    DeliveryConfig  `yaml:"delivery"`
	Redis       RedisConfig     `yaml:"redis"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DSN monta a connection string do pgxpool
func (c DatabaseConfig) DSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	return dsn.String()
}

type PaymentsConfig struct {
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

type DeliveryConfig struct {
	Delay         time.Duration `yaml:"delay"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

func defaultConfig() Config {
	return Config{
		Port:        "8080",
		ServiceName: "orders-service",
		LogLevel:    "info",
		StoreDriver: storeDriverPostgres,
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "root",
			Password: "pass",
			Name:     "orders_db",
		},
		Payments: PaymentsConfig{
			APIURL:  "http://localhost:8081",
			Timeout: 5 * time.Second,
		},
		Delivery: DeliveryConfig{
			Delay:         30 * time.Second,
			SweepInterval: time.Minute,
		},
		Telemetry: TelemetryConfig{
			Enabled:      true,
			OTLPEndpoint: "localhost:4318",
		},
	}
}

// loadConfig aplica defaults, depois o arquivo (se houver) e por fim o ambiente
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	var errs []error
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.StoreDriver = getEnv("STORE_DRIVER", cfg.StoreDriver)

	cfg.Database.Host = getEnv("DATABASE_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DATABASE_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DATABASE_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DATABASE_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DATABASE_NAME", cfg.Database.Name)

	cfg.Payments.APIURL = getEnv("PAYMENTS_API_URL", cfg.Payments.APIURL)
	cfg.Payments.Timeout = getEnvDuration("PAYMENT_TIMEOUT", cfg.Payments.Timeout, &errs)
	cfg.Payments.Retries = getEnvInt("PAYMENT_RETRIES", cfg.Payments.Retries, &errs)

	cfg.Delivery.Delay = getEnvDuration("DELIVERY_DELAY", cfg.Delivery.Delay, &errs)
	cfg.Delivery.SweepInterval = getEnvDuration("SWEEP_INTERVAL", cfg.Delivery.SweepInterval, &errs)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)

	cfg.Telemetry.Enabled = getEnvBool("OTEL_ENABLED", cfg.Telemetry.Enabled, &errs)
	cfg.Telemetry.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.StoreDriver != storeDriverPostgres && c.StoreDriver != storeDriverMemory {
		errs = append(errs, fmt.Errorf("store driver must be %q or %q, got %q", storeDriverPostgres, storeDriverMemory, c.StoreDriver))
	}
	if c.Payments.APIURL == "" {
		errs = append(errs, errors.New("payments api url is required"))
	}
	if c.Payments.Timeout <= 0 {
		errs = append(errs, errors.New("payment timeout must be positive"))
	}
	if c.Payments.Retries < 0 {
		errs = append(errs, errors.New("payment retries must not be negative"))
	}
	if c.Delivery.Delay <= 0 {
		errs = append(errs, errors.New("delivery delay must be positive"))
	}
	if c.Delivery.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return b
}
