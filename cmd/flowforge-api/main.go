package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowforge/pkg/channels/kafka"
	"github.com/dukex/flowforge/pkg/cmd"
	"github.com/dukex/flowforge/pkg/compiler"
	"github.com/dukex/flowforge/pkg/deployment"
	"github.com/dukex/flowforge/pkg/log"
	"github.com/dukex/flowforge/pkg/otelhelper"
	"github.com/dukex/flowforge/pkg/platform"
	"github.com/dukex/flowforge/pkg/registry"
	"github.com/dukex/flowforge/pkg/stream"
	"github.com/dukex/flowforge/pkg/web"
)

const (
	defaultPort        = 9091
	defaultPlatformURL = "https://api.cloudflare.com/client/v4"
	shutdownTimeout    = 30 * time.Second
)

func main() {
	command := &cli.Command{
		Name:                  "flowforge-api",
		Usage:                 "Compile workflows and deploy them to the edge platform",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Optional YAML config file whose values act as flag defaults",
				Sources: cli.EnvVars("FLOWFORGE_CONFIG"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL: file://, postgres://, sqlite:// or redis://",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (memory, kafka)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers for the kafka event bus",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "platform-url",
				Usage:   "Base URL of the platform API",
				Value:   defaultPlatformURL,
				Sources: cli.EnvVars("PLATFORM_URL"),
			},
			&cli.StringFlag{
				Name:    "platform-account-id",
				Usage:   "Platform account id",
				Sources: cli.EnvVars("PLATFORM_ACCOUNT_ID"),
			},
			&cli.StringFlag{
				Name:    "platform-token",
				Usage:   "Platform API token",
				Sources: cli.EnvVars("PLATFORM_API_TOKEN"),
			},
			&cli.DurationFlag{
				Name:    "stream-keepalive",
				Usage:   "Interval between keepalive comments on progress streams",
				Value:   stream.DefaultKeepalive,
				Sources: cli.EnvVars("STREAM_KEEPALIVE"),
			},
			&cli.DurationFlag{
				Name:    "sweep-interval",
				Usage:   "How often stale deployments are looked for",
				Value:   time.Minute,
				Sources: cli.EnvVars("SWEEP_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "stale-after",
				Usage:   "Age after which an unowned active deployment is failed",
				Value:   deployment.DefaultStaleAfter,
				Sources: cli.EnvVars("STALE_AFTER"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Before: applyFileConfig,
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyFileConfig fills every flag not given on the command line or in the
// environment from the config file.
func applyFileConfig(ctx context.Context, command *cli.Command) (context.Context, error) {
	path := command.String("config")
	if path == "" {
		return ctx, nil
	}

	config, err := LoadFileConfig(path)
	if err != nil {
		return ctx, err
	}

	for name, value := range config.FlagValues() {
		if command.IsSet(name) {
			continue
		}

		err := command.Set(name, value)
		if err != nil {
			return ctx, fmt.Errorf("invalid %s in config file: %w", name, err)
		}
	}

	return ctx, nil
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing flowforge API")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, shutdownTracer, err := otelhelper.NewTracer(ctx, "flowforge-api", command.Bool("otel"))
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}

	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("Failed to shutdown tracer provider", "error", err)
		}
	}()

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.Background()); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), kafka.ParseBrokers(command.String("kafka-brokers")), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	err = registerEventLoggers(eventBus, logger)
	if err != nil {
		return err
	}

	err = eventBus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to deployment events: %w", err)
	}

	nodes := registry.NewRegistry(logger)

	err = nodes.RegisterDefaultNodes()
	if err != nil {
		return fmt.Errorf("failed to register nodes: %w", err)
	}

	client, err := platform.New(platform.Config{
		BaseURL:   command.String("platform-url"),
		AccountID: command.String("platform-account-id"),
		Token:     command.String("platform-token"),
	}, logger, tracer)
	if err != nil {
		return err
	}

	orchestrator := deployment.New(persistence, client, stream.NewHub(logger), logger,
		deployment.WithEventBus(eventBus),
		deployment.WithTracer(tracer),
	)

	sweeper := deployment.NewSweeper(orchestrator, command.Duration("stale-after"), logger)

	err = sweeper.Start(fmt.Sprintf("@every %s", command.Duration("sweep-interval")))
	if err != nil {
		return err
	}

	defer sweeper.Stop()

	api := NewAPI(logger, web.Config{
		Compiler:        compiler.New(nodes, logger),
		Registry:        nodes,
		Orchestrator:    orchestrator,
		Persistence:     persistence,
		Validator:       validator.New(validator.WithRequiredStructEnabled()),
		Tracer:          tracer,
		Logger:          logger,
		StreamKeepalive: command.Duration("stream-keepalive"),
	})

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- api.Start(command.Int("port"))
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = api.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error("Failed to stop HTTP server", "error", err)
	}

	err = orchestrator.Shutdown(shutdownCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("Deployments still running at shutdown; the sweeper will fail them after restart")
	}

	return nil
}
