package di

import (
	"context"
	"fmt"
	"time"

	"FeedRelay/internal/domain/repository"
	"FeedRelay/internal/handler/api"
	mid "FeedRelay/internal/middleware"
	internalrepo "FeedRelay/internal/repository"
	"FeedRelay/internal/service/binance"
	"FeedRelay/internal/usecase"
	pkgch "FeedRelay/pkg/clickhouse"
	"FeedRelay/pkg/config"
	xhttp "FeedRelay/pkg/http"
	"FeedRelay/pkg/http/middleware"
	pkgkafka "FeedRelay/pkg/kafka"
	"FeedRelay/pkg/logger"
	"FeedRelay/pkg/metrics"
	"FeedRelay/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithClientID(cfg.Kafka.ClientID),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient creates a ClickHouse client and the archive table.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.ClickHouseBusSchema(cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRedisClient creates a Redis client and checks connectivity.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvideBus opens the configured bus backend.
func ProvideBus(cfg *config.Config, log *logger.Logger) (repository.Bus, error) {
	log.Info("bus backend", logger.String("backend", cfg.Bus.Backend))
	switch cfg.Bus.Backend {
	case "kafka":
		producer, err := ProvideKafkaProducer(cfg)
		if err != nil {
			return nil, err
		}
		return internalrepo.NewKafkaBus(producer), nil
	case "redis":
		client, err := ProvideRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		return internalrepo.NewRedisBus(client,
			internalrepo.WithStreamMaxLen(cfg.Redis.StreamMaxLen),
			internalrepo.WithRedisQueue(cfg.Bus.QueueSize, cfg.Bus.BatchSize, cfg.Bus.Linger),
		), nil
	case "clickhouse":
		client, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, err
		}
		return internalrepo.NewClickHouseBus(client.DB(), cfg.ClickHouse.Table, cfg.Bus.QueueSize, cfg.Bus.BatchSize, cfg.Bus.Linger), nil
	default:
		return nil, fmt.Errorf("unknown bus backend %q", cfg.Bus.Backend)
	}
}

// ProvidePublisher creates the topic-routing publish gateway.
func ProvidePublisher(bus repository.Bus, m repository.Metrics, log *logger.Logger, cfg *config.Config) repository.Publisher {
	return internalrepo.NewPublishGateway(bus, m, log,
		internalrepo.WithTopicPrefix(cfg.Publish.TopicPrefix),
		internalrepo.WithExchanges(cfg.Publish.Exchanges),
		internalrepo.WithDatatypes(cfg.Publish.Datatypes),
	)
}

// ProvideFactorStore creates the latest-factor store.
func ProvideFactorStore() repository.FactorStore {
	return usecase.NewMemoryFactorStore()
}

// ProvideFactorThrottle creates the factor throttle.
func ProvideFactorThrottle(cfg *config.Config) *usecase.FactorThrottle {
	return usecase.NewFactorThrottle(usecase.WithWindow(cfg.Factor.Window))
}

// ProvideEventRouter creates the event router use case.
func ProvideEventRouter(
	pub repository.Publisher,
	throttle *usecase.FactorThrottle,
	store repository.FactorStore,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.EventRouter {
	return usecase.NewEventRouter(pub, throttle, store, m, log)
}

// ProvideEventPipeline wraps the router with validation and panic isolation.
func ProvideEventPipeline(router *usecase.EventRouter, m repository.Metrics, log *logger.Logger) *mid.EventPipeline {
	return mid.NewEventPipeline(router, m, log)
}

// ProvideMarketStream creates the Binance feed.
func ProvideMarketStream(cfg *config.Config, log *logger.Logger) repository.MarketStream {
	return binance.New(binance.Config{
		WebsocketURL:   cfg.Feed.WebSocketURL,
		RESTURL:        cfg.Feed.RESTURL,
		Symbols:        cfg.Feed.Symbols,
		MaxDepth:       cfg.Feed.MaxDepth,
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		PingInterval:   cfg.Feed.PingInterval,
	}, xhttp.NewClient(xhttp.WithTimeout(cfg.Feed.RESTTimeout)), log)
}

// ProvideFeedCollector creates the feed collector use case.
func ProvideFeedCollector(
	stream repository.MarketStream,
	pipe *mid.EventPipeline,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.FeedCollector {
	return usecase.NewFeedCollector(stream, pipe, m, log)
}

// ProvideHTTPServer creates the HTTP server with health, metrics and factor
// routes.
func ProvideHTTPServer(cfg *config.Config, log *logger.Logger, collector *usecase.FeedCollector, store repository.FactorStore) *xhttp.Server {
	handlers := []xhttp.Handler{
		api.NewHealthHandler(collector.IsConnected),
		api.NewFactorsHandler(log, store, middleware.NewLimiter(20, 10)),
	}
	return xhttp.NewServer(handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(cfg.Server.MetricsPath),
		xhttp.WithLogger(log),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	collector *usecase.FeedCollector,
	httpServer *xhttp.Server,
	bus repository.Bus,
) *server.App {
	return server.New(cfg, log, collector, httpServer, bus)
}
