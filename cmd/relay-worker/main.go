package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/relaycrm/relay/pkg/cmd"
	"github.com/relaycrm/relay/pkg/engine"
	"github.com/relaycrm/relay/pkg/log"
	"github.com/relaycrm/relay/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "relay-worker",
		EnableShellCompletion: true,
		Usage:                 "Execute workflows bound to CRM events and schedules",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the delay queue (in-memory when unset)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of concurrent workflow runners",
				Value:   8,
				Sources: cli.EnvVars("WORKERS"),
			},
			&cli.StringFlag{
				Name:    "ai-service-url",
				Usage:   "Base URL of the AI service",
				Sources: cli.EnvVars("AI_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "ai-api-key",
				Usage:   "API key for the AI service",
				Sources: cli.EnvVars("AI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "crm-api-url",
				Usage:   "Base URL of the CRM record store",
				Sources: cli.EnvVars("CRM_API_URL"),
			},
			&cli.StringFlag{
				Name:    "crm-token",
				Usage:   "Auth token for the CRM record store",
				Sources: cli.EnvVars("CRM_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "mail-relay-url",
				Usage:   "Base URL of the outbound mail relay",
				Sources: cli.EnvVars("MAIL_RELAY_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing Relay Worker")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := otelhelper.NewTracer(ctx, "relay-worker"); err != nil {
				logger.WarnContext(ctx, "Tracing disabled", "error", err)
			}

			registry := cmd.NewRegistry(logger)

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			busProvider := command.String("event-bus")
			brokers := command.String("kafka-brokers")

			businessBus, err := cmd.NewBusinessEventBus(busProvider, brokers, "relay-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := businessBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close business event bus", "error", err)
				}
			}()

			executionBus, err := cmd.NewExecutionEventBus(busProvider, brokers, "relay-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := executionBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close execution event bus", "error", err)
				}
			}()

			delays, err := cmd.NewDelayQueue(command.String("redis-url"))
			if err != nil {
				return err
			}

			collaborators := cmd.NewCollaborators(cmd.CollaboratorConfig{
				AIServiceURL: command.String("ai-service-url"),
				AIAPIKey:     command.String("ai-api-key"),
				CRMAPIURL:    command.String("crm-api-url"),
				CRMToken:     command.String("crm-token"),
				MailRelayURL: command.String("mail-relay-url"),
			}, executionBus, logger)

			records := engine.NewRecordManager(logger, persistence.ExecutionRepository(), executionBus)
			eng := engine.NewEngine(logger, registry, records, collaborators, delays)

			workers := command.Int("workers")
			pool := engine.NewWorkerPool(ctx, logger, workers, workers*4)

			worker := NewWorker(logger, persistence, businessBus, eng, records, pool)
			defer worker.Stop()

			if err := worker.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Worker stopped with error", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
