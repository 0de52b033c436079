// Package config загружает конфигурацию fanoutctl из окружения.
//
// Порядок источников:
//   - значения по умолчанию (env-default)
//   - файл .env в рабочем каталоге (если есть)
//   - переменные окружения
//
// Флаги командной строки применяются поверх в пакете cli.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Значения по умолчанию.
const (
	DefaultExchange = "integration_output_exchange"
	DefaultQueue    = "Playground"
)

// ErrInvalidBroker — некорректные параметры подключения к брокеру.
var ErrInvalidBroker = errors.New("invalid broker config")

// Broker — параметры подключения к RabbitMQ.
type Broker struct {
	Host        string `env:"RABBITMQ_HOST" env-default:"localhost"`
	Port        int    `env:"RABBITMQ_PORT" env-default:"5672"`
	VirtualHost string `env:"RABBITMQ_VHOST" env-default:"/"`
	User        string `env:"RABBITMQ_USER" env-default:"guest"`
	Password    string `env:"RABBITMQ_PASSWORD" env-default:"guest"`
}

// Config — конфигурация процесса. Фиксируется при старте.
type Config struct {
	Broker Broker

	// Exchange — имя fanout обменника.
	Exchange string `env:"FANOUT_EXCHANGE" env-default:"integration_output_exchange"`

	// Queue — имя очереди consumer'а.
	Queue string `env:"FANOUT_QUEUE" env-default:"Playground"`

	// MetricsAddr — адрес /metrics endpoint, пусто — выключен.
	MetricsAddr string `env:"METRICS_ADDR"`

	// ArchiveDSN — DSN PostgreSQL для архива полученных сообщений.
	ArchiveDSN string `env:"ARCHIVE_DB_URL"`

	// LogLevel — DEBUG, INFO, WARN или ERROR.
	LogLevel string `env:"LOG_LEVEL" env-default:"WARN"`

	// LogFormat — text или json.
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
}

// Load читает конфигурацию из .env и окружения.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Broker.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default возвращает конфигурацию без учёта окружения.
func Default() *Config {
	return &Config{
		Broker: Broker{
			Host:        "localhost",
			Port:        5672,
			VirtualHost: "/",
			User:        "guest",
			Password:    "guest",
		},
		Exchange:  DefaultExchange,
		Queue:     DefaultQueue,
		LogLevel:  "WARN",
		LogFormat: "text",
	}
}

// Validate проверяет параметры подключения.
func (b Broker) Validate() error {
	if b.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidBroker)
	}
	if b.Port <= 0 || b.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidBroker, b.Port)
	}
	return nil
}

// URL возвращает AMQP URI для amqp.Dial.
func (b Broker) URL() string {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     b.Host,
		Port:     b.Port,
		Username: b.User,
		Password: b.Password,
		Vhost:    b.VirtualHost,
	}.String()
}

// Redacted возвращает URI без пароля для логов.
func (b Broker) Redacted() string {
	return fmt.Sprintf("amqp://%s@%s:%d%s", b.User, b.Host, b.Port, vhostPath(b.VirtualHost))
}

func vhostPath(vhost string) string {
	if vhost == "/" {
		return "/"
	}
	return "/" + vhost
}
