package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/fanoutctl/internal/config"
	"github.com/shaiso/fanoutctl/internal/mq"
	"github.com/shaiso/fanoutctl/internal/repo"
	"github.com/shaiso/fanoutctl/internal/telemetry"
)

// Режимы работы.
const (
	ModePublisher = "publisher"
	ModeConsumer  = "consumer"
)

// Dialer открывает сессию с брокером.
type Dialer func(ctx context.Context, broker config.Broker, logger *slog.Logger) (*mq.Session, error)

// Archive сохраняет полученные сообщения.
type Archive interface {
	Save(ctx context.Context, msg *repo.ReceivedMessage) error
}

// ArchiveOpener открывает архив по DSN. Возвращаемая функция освобождает ресурсы.
type ArchiveOpener func(ctx context.Context, dsn string) (Archive, func(), error)

// Deps — зависимости команды.
type Deps struct {
	Config      *config.Config
	Dial        Dialer
	OpenArchive ArchiveOpener
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

func (d *Deps) withDefaults() {
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.Dial == nil {
		d.Dial = mq.Dial
	}
	if d.OpenArchive == nil {
		d.OpenArchive = OpenPostgresArchive
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NewMetrics()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.In == nil {
		d.In = os.Stdin
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Err == nil {
		d.Err = os.Stderr
	}
}

// options — результат разбора аргументов.
type options struct {
	mode        string
	exchange    string
	queue       string
	metricsAddr string
	archiveDSN  string
}

// version задаётся через ldflags при сборке.
var version = "dev"

// NewRootCmd создаёт корневую команду fanoutctl.
func NewRootCmd(deps Deps) *cobra.Command {
	deps.withDefaults()

	opts := &options{}

	cmd := &cobra.Command{
		Use:   "fanoutctl <publisher|consumer> [queue_name]",
		Short: "Publish to or consume from a RabbitMQ fanout exchange",
		Long: `fanoutctl connects to RabbitMQ, declares a durable fanout exchange and runs
in one of two modes.

Arguments:
  publisher   Run in publisher mode to send messages.
  consumer    Run in consumer mode to receive messages.
  queue_name  (Optional) Specify a queue name (default: ` + deps.Config.Queue + `).

Broker settings are read from RABBITMQ_HOST, RABBITMQ_PORT, RABBITMQ_VHOST,
RABBITMQ_USER and RABBITMQ_PASSWORD (or a .env file).`,
		Example: `  fanoutctl publisher
  fanoutctl consumer MyQueue
  fanoutctl consumer MyQueue --exchange orders`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			return parseArgs(args, deps.Config, opts)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), deps, *opts)
		},
	}

	cmd.Flags().StringVarP(&opts.exchange, "exchange", "x", deps.Config.Exchange, "Fanout exchange name")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", deps.Config.MetricsAddr, "Serve /metrics on this address (disabled if empty)")
	cmd.Flags().StringVar(&opts.archiveDSN, "archive-dsn", deps.Config.ArchiveDSN, "PostgreSQL DSN to archive consumed messages (disabled if empty)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.SetIn(deps.In)
	cmd.SetOut(deps.Out)
	cmd.SetErr(deps.Err)

	return cmd
}

// parseArgs проверяет позиционные аргументы и заполняет opts.
func parseArgs(args []string, cfg *config.Config, opts *options) error {
	if len(args) < 1 || len(args) > 2 {
		return &usageError{err: fmt.Errorf("%w: expected 1 or 2 positional arguments, got %d", ErrInvalidArgs, len(args))}
	}

	mode := strings.ToLower(args[0])
	if mode != ModePublisher && mode != ModeConsumer {
		return &usageError{err: fmt.Errorf("%w %q", ErrInvalidMode, args[0])}
	}
	opts.mode = mode

	opts.queue = cfg.Queue
	if len(args) == 2 {
		opts.queue = args[1]
	}

	return nil
}

// Execute запускает команду с аргументами args и возвращает код выхода.
func Execute(ctx context.Context, deps Deps, args []string) int {
	deps.withDefaults()

	// nil заставил бы cobra взять os.Args
	if args == nil {
		args = []string{}
	}

	cmd := NewRootCmd(deps)

	// --help в любой позиции, даже как значение флага или после "--",
	// печатает справку без подключения к брокеру.
	if slices.Contains(args, "--help") {
		if err := cmd.Help(); err != nil {
			return 1
		}
		return 0
	}

	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	out := NewOutput(deps.Out, deps.Err)
	out.Error(err.Error())

	var ue *usageError
	if errors.As(err, &ue) {
		out.Usage("\n" + cmd.UsageString())
	}
	return 1
}

// run подключается к брокеру и запускает выбранный режим.
func run(ctx context.Context, deps Deps, opts options) error {
	logger := telemetry.WithMode(deps.Logger, opts.mode)
	out := NewOutput(deps.Out, deps.Err)

	if opts.metricsAddr != "" {
		telemetry.ServeMetrics(ctx, opts.metricsAddr, deps.Metrics, logger)
	}

	session, err := deps.Dial(ctx, deps.Config.Broker, logger)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer session.Close()

	exchange := mq.Exchange(opts.exchange)

	switch opts.mode {
	case ModePublisher:
		if err := mq.SetupTopology(session, exchange, ""); err != nil {
			return err
		}
		pub := mq.NewPublisher(session, deps.Metrics, logger)
		return runPublisher(ctx, deps.In, out, pub, exchange)

	default:
		queue := mq.Queue(opts.queue)
		if err := mq.SetupTopology(session, exchange, queue); err != nil {
			return err
		}

		var archive Archive
		if opts.archiveDSN != "" {
			a, closeFn, err := deps.OpenArchive(ctx, opts.archiveDSN)
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer closeFn()
			archive = a
		}

		return runConsumer(ctx, session, out, consumerParams{
			exchange: exchange,
			queue:    queue,
			archive:  archive,
			metrics:  deps.Metrics,
			logger:   logger,
		})
	}
}

// OpenPostgresArchive открывает архив сообщений в PostgreSQL.
func OpenPostgresArchive(ctx context.Context, dsn string) (Archive, func(), error) {
	pool, err := repo.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}

	messages := repo.NewMessageRepo(pool)
	if err := messages.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return messages, pool.Close, nil
}
