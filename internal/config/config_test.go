package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Default()
	if cfg.Broker != want.Broker {
		t.Errorf("broker = %+v, want %+v", cfg.Broker, want.Broker)
	}
	if cfg.Exchange != DefaultExchange {
		t.Errorf("exchange = %q, want %q", cfg.Exchange, DefaultExchange)
	}
	if cfg.Queue != DefaultQueue {
		t.Errorf("queue = %q, want %q", cfg.Queue, DefaultQueue)
	}
	if cfg.MetricsAddr != "" || cfg.ArchiveDSN != "" {
		t.Error("optional features should be disabled by default")
	}
	if cfg.LogLevel != "WARN" || cfg.LogFormat != "text" {
		t.Errorf("log settings = %q/%q, want WARN/text", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_LogSettings(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %q, want DEBUG", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	content := "LOG_LEVEL=ERROR\nLOG_FORMAT=json\nFANOUT_QUEUE=from-dotenv\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// godotenv не перезаписывает уже заданные переменные и не удаляет их после теста
	for _, key := range []string{"LOG_LEVEL", "LOG_FORMAT", "FANOUT_QUEUE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "ERROR" || cfg.LogFormat != "json" || cfg.Queue != "from-dotenv" {
		t.Errorf("unexpected config from .env: %+v", cfg)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("RABBITMQ_HOST", "rabbit.internal")
	t.Setenv("RABBITMQ_PORT", "5673")
	t.Setenv("RABBITMQ_VHOST", "playground")
	t.Setenv("RABBITMQ_USER", "app")
	t.Setenv("RABBITMQ_PASSWORD", "secret")
	t.Setenv("FANOUT_EXCHANGE", "orders")
	t.Setenv("FANOUT_QUEUE", "audit")
	t.Setenv("METRICS_ADDR", ":9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Broker{Host: "rabbit.internal", Port: 5673, VirtualHost: "playground", User: "app", Password: "secret"}
	if cfg.Broker != want {
		t.Errorf("broker = %+v, want %+v", cfg.Broker, want)
	}
	if cfg.Exchange != "orders" || cfg.Queue != "audit" || cfg.MetricsAddr != ":9100" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("RABBITMQ_PORT", "70000")

	_, err := Load()
	if !errors.Is(err, ErrInvalidBroker) {
		t.Errorf("expected ErrInvalidBroker, got %v", err)
	}
}

func TestBroker_URL(t *testing.T) {
	tests := []struct {
		name   string
		broker Broker
	}{
		{"defaults", Default().Broker},
		{"custom", Broker{Host: "mq", Port: 5673, VirtualHost: "team-a", User: "u", Password: "p@ss"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, err := amqp.ParseURI(tt.broker.URL())
			if err != nil {
				t.Fatalf("URL() is not a valid AMQP URI: %v", err)
			}
			if uri.Host != tt.broker.Host || uri.Port != tt.broker.Port {
				t.Errorf("host = %s:%d, want %s:%d", uri.Host, uri.Port, tt.broker.Host, tt.broker.Port)
			}
			if uri.Vhost != tt.broker.VirtualHost {
				t.Errorf("vhost = %q, want %q", uri.Vhost, tt.broker.VirtualHost)
			}
			if uri.Username != tt.broker.User || uri.Password != tt.broker.Password {
				t.Errorf("credentials = %s/%s, want %s/%s", uri.Username, uri.Password, tt.broker.User, tt.broker.Password)
			}
		})
	}
}

func TestBroker_Redacted(t *testing.T) {
	b := Broker{Host: "mq", Port: 5672, VirtualHost: "/", User: "guest", Password: "secret"}
	if got := b.Redacted(); got != "amqp://guest@mq:5672/" {
		t.Errorf("Redacted() = %q", got)
	}
}

func TestBroker_Validate(t *testing.T) {
	if err := Default().Broker.Validate(); err != nil {
		t.Errorf("default broker should be valid: %v", err)
	}
	if err := (Broker{Port: 5672}).Validate(); !errors.Is(err, ErrInvalidBroker) {
		t.Errorf("empty host should be invalid, got %v", err)
	}
	if err := (Broker{Host: "h"}).Validate(); !errors.Is(err, ErrInvalidBroker) {
		t.Errorf("zero port should be invalid, got %v", err)
	}
}
