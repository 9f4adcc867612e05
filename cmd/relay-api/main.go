package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/relaycrm/relay/pkg/cmd"
	"github.com/relaycrm/relay/pkg/engine"
	"github.com/relaycrm/relay/pkg/log"
	"github.com/relaycrm/relay/pkg/otelhelper"
	"github.com/relaycrm/relay/pkg/services"
)

const (
	defaultPort       = 9091
	delayPollInterval = time.Second
)

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "relay-api",
		Usage:                 "Create and manage workflow automations",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
				Value:   "gochannel",
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

			logger.InfoContext(ctx, "Initializing Relay API")

			if _, err := otelhelper.NewTracer(ctx, "relay-api"); err != nil {
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

			eventBus, err := cmd.NewExecutionEventBus(
				command.String("event-bus"),
				command.String("kafka-brokers"),
				"relay-api",
				logger,
			)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
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
			}, eventBus, logger)

			records := engine.NewRecordManager(logger, persistence.ExecutionRepository(), eventBus)
			eng := engine.NewEngine(logger, registry, records, collaborators, delays)
			eng.StartDelayPoller(ctx, delayPollInterval)

			if err := services.NewWorkflow(persistence, registry).SeedTemplates(ctx); err != nil {
				return err
			}

			api := NewAPI(logger, persistence, registry, eng)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
