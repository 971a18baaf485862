package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"slotline/backend/internal/config"
	"slotline/backend/internal/events"
	"slotline/backend/internal/lease"
	"slotline/backend/internal/service/scheduling"
	"slotline/backend/internal/store"
	"slotline/backend/internal/store/memory"
	"slotline/backend/internal/store/postgres"
	"slotline/backend/internal/telemetry"
	grpcTransport "slotline/backend/internal/transport/grpc"
)

const eventDeliveryTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC scheduling server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

// closer runs cleanup steps in reverse registration order.
type closer []func(context.Context)

func (c *closer) add(fn func(context.Context)) { *c = append(*c, fn) }

func (c closer) run(ctx context.Context) {
	for i := len(c) - 1; i >= 0; i-- {
		c[i](ctx)
	}
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("log_level", cfg.LogLevel),
		slog.String("store", cfg.StoreDriver),
		slog.String("lease", cfg.LeaseBackend),
	)

	var cleanup closer
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		cleanup.run(ctx)
	}()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    serviceName,
		Endpoint:       cfg.OTelEndpoint,
		SampleRatio:    cfg.OTelSampleRatio,
		MetricInterval: cfg.OTelMetricInterval,
	})
	if err != nil {
		log.Error("telemetry setup failed", slog.Any("err", err))
		return err
	}
	cleanup.add(func(ctx context.Context) {
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("telemetry shutdown failed", slog.Any("err", err))
		}
	})

	locker, err := newLocker(ctx, cfg, log, &cleanup)
	if err != nil {
		return err
	}
	st, err := newStore(cfg, log, locker, &cleanup)
	if err != nil {
		return err
	}
	publisher, err := newPublisher(cfg, log, &cleanup)
	if err != nil {
		return err
	}

	svc := scheduling.NewService(st,
		scheduling.WithPublisher(publisher),
		scheduling.WithLogger(log),
		scheduling.WithSlotStep(cfg.SlotStepMinutes),
		scheduling.WithMaxRangeDays(cfg.SlotMaxRangeDays),
		scheduling.WithRecurringBlocks(cfg.ExpandRecurringBlocks),
	)

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcTransport.UnaryServerRequestIDInterceptor(),
			defaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout),
		),
	)
	grpcTransport.RegisterSchedulingServiceServer(grpcServer, grpcTransport.NewSchedulingServer(svc, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(grpcTransport.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()

	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		healthServer.Shutdown()
		shutdown(log, grpcServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("grpc server stopped with error", slog.Any("err", err))
			return err
		}
	}
	return nil
}

// newLocker builds the provider-day lease backend. A nil locker means the
// store's own default: a transaction-scoped advisory lock for Postgres, an
// in-process keyed mutex for memory.
func newLocker(ctx context.Context, cfg config.Config, log *slog.Logger, cleanup *closer) (lease.Locker, error) {
	switch cfg.LeaseBackend {
	case config.LeaseRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		cleanup.add(func(context.Context) {
			if err := rdb.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		})
		log.Info("using redis lease", slog.String("redis_addr", cfg.RedisAddr), slog.Duration("ttl", cfg.LeaseTTL))
		return lease.NewRedisLocker(rdb, lease.RedisConfig{
			TTL:           cfg.LeaseTTL,
			RetryInterval: cfg.LeaseRetryInterval,
		}, log), nil
	case config.LeaseMemory:
		return lease.NewKeyedMutex(), nil
	}
	return nil, nil
}

func newStore(cfg config.Config, log *slog.Logger, locker lease.Locker, cleanup *closer) (store.Store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on restart")
		var opts []memory.Option
		if locker != nil {
			opts = append(opts, memory.WithLocker(locker))
		}
		return memory.New(opts...), nil
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		ApplicationName: serviceName,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, err
	}
	cleanup.add(func(context.Context) {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	})

	var opts []postgres.AppointmentOption
	if locker != nil {
		opts = append(opts, postgres.WithLocker(locker))
	}
	return postgres.NewStore(db, opts...), nil
}

func newPublisher(cfg config.Config, log *slog.Logger, cleanup *closer) (events.Publisher, error) {
	var next events.Publisher = events.NewLogPublisher(log)
	if brokers := events.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:     brokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
		})
		if err != nil {
			return nil, err
		}
		cleanup.add(func(context.Context) {
			if err := kp.Close(); err != nil {
				log.Warn("kafka writer close failed", slog.Any("err", err))
			}
		})
		log.Info("publishing events to kafka", slog.Any("brokers", brokers), slog.String("topic_prefix", cfg.KafkaTopicPrefix))
		next = kp
	}

	async := events.NewAsyncPublisher(next, cfg.EventBuffer, eventDeliveryTimeout, log)
	cleanup.add(func(ctx context.Context) {
		if err := async.Close(ctx); err != nil {
			log.Warn("event queue drain incomplete", slog.Any("err", err))
		}
	})
	return async, nil
}
