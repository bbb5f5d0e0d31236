// Package backend builds the durable store and event publisher selected by
// configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/dvloznov/finsight/internal/config"
	"github.com/dvloznov/finsight/internal/events"
	"github.com/dvloznov/finsight/internal/events/amqp"
	"github.com/dvloznov/finsight/internal/events/kafka"
	"github.com/dvloznov/finsight/internal/kv"
	"github.com/dvloznov/finsight/internal/kv/gcs"
	"github.com/dvloznov/finsight/internal/kv/memory"
	"github.com/dvloznov/finsight/internal/kv/sqlstore"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// OpenStore opens the kv.Store named by cfg.StoreBackend.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (kv.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory, "":
		log.Info().Msg("Using in-memory durable store")
		return memory.New(), nil

	case config.StoreSQLite:
		store, err := sqlstore.Open(ctx, sqlstore.SQLite, cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: sqlite: %w", err)
		}
		log.Info().Str("path", cfg.SQLiteDBPath).Msg("Using SQLite durable store")
		return store, nil

	case config.StorePostgres:
		store, err := sqlstore.Open(ctx, sqlstore.Postgres, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: postgres: %w", err)
		}
		log.Info().Msg("Using PostgreSQL durable store")
		return store, nil

	case config.StoreGCS:
		var opts []option.ClientOption
		if cfg.GCSCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
		}
		store, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSPrefix, opts...)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: gcs: %w", err)
		}
		log.Info().Str("bucket", cfg.GCSBucket).Str("prefix", cfg.GCSPrefix).Msg("Using GCS durable store")
		return store, nil

	default:
		return nil, fmt.Errorf("OpenStore: unsupported store backend %q", cfg.StoreBackend)
	}
}

// OpenPublisher creates the events.Publisher named by cfg.EventsBackend.
// A broker that cannot be reached degrades to events.Noop with a warning.
func OpenPublisher(cfg *config.Config, log zerolog.Logger) events.Publisher {
	switch cfg.EventsBackend {
	case config.EventsAMQP:
		p, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to AMQP, activity events disabled")
			return events.Noop{}
		}
		log.Info().Str("exchange", cfg.AMQPExchange).Str("queue", cfg.AMQPQueue).Msg("Publishing activity events to AMQP")
		return p

	case config.EventsKafka:
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("Publishing activity events to Kafka")
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)

	default:
		return events.Noop{}
	}
}

// OpenConsumer creates the events.Consumer for cfg.EventsBackend. Unlike
// OpenPublisher it fails when no broker is configured or reachable.
func OpenConsumer(cfg *config.Config, log zerolog.Logger) (events.Consumer, error) {
	switch cfg.EventsBackend {
	case config.EventsAMQP:
		c, err := amqp.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log)
		if err != nil {
			return nil, fmt.Errorf("OpenConsumer: amqp: %w", err)
		}
		return c, nil

	case config.EventsKafka:
		return kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, log), nil

	default:
		return nil, fmt.Errorf("OpenConsumer: events backend %q has nothing to consume", cfg.EventsBackend)
	}
}
