// fanoutctl — publisher/consumer для RabbitMQ fanout exchange.
//
// Использование:
//
//	fanoutctl <publisher|consumer> [queue_name] [--exchange NAME]
//
// Режимы:
//
//	publisher  Читает строки из stdin и публикует их ('e' — выход)
//	consumer   Печатает и подтверждает сообщения из очереди
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/fanoutctl/internal/cli"
	"github.com/shaiso/fanoutctl/internal/config"
	"github.com/shaiso/fanoutctl/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	// Логи в stderr: stdout занят диалогом
	logger := telemetry.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	code := cli.Execute(ctx, cli.Deps{
		Config:  cfg,
		Metrics: telemetry.NewMetrics(),
		Logger:  logger,
	}, os.Args[1:])

	cancel()
	os.Exit(code)
}
