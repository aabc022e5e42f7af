package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/crm/internal/crm/auth"
	"github.com/gartstein/crm/internal/crm/config"
	"github.com/gartstein/crm/internal/crm/controller"
	"github.com/gartstein/crm/internal/crm/db"
	"github.com/gartstein/crm/internal/crm/events"
	"github.com/gartstein/crm/internal/crm/handlers"
	"github.com/gartstein/crm/internal/crm/view"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// eventProducer is what main needs from either producer implementation.
type eventProducer interface {
	controller.EventProducer
	Close()
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)
	logger.Info("Configuration loaded", cfg.Fields()...)

	repo, err := db.NewRepository(initDatabase(cfg), logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	if cfg.SeedDemoData {
		seeded, err := repo.SeedDemoData(context.Background())
		if err != nil {
			logger.Fatal("failed to seed demo data", zap.Error(err))
		}
		logger.Info("Demo data checked", zap.Bool("seeded", seeded))
	}

	producer := initProducer(cfg, logger)
	defer producer.Close()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if consumer := initAuditConsumer(cfg, logger); consumer != nil {
		if err := consumer.Start(consumerCtx); err != nil {
			logger.Fatal("Failed to start audit consumer", zap.Error(err))
		}
		defer func() {
			stopConsumer()
			<-consumer.Done()
			consumer.Close()
		}()
	}

	crmSvc := controller.NewCrmService(repo, producer, logger)

	sessions := handlers.NewSessionStore(cfg.SessionCapacity, cfg.SessionTTL,
		func(ctx context.Context) (*view.ListView, error) {
			return view.NewListView(ctx, crmSvc, logger)
		}, logger)
	httpHandler := handlers.NewHTTPHandler(crmSvc, sessions, repo.Ping, logger)

	authInterceptor := auth.NewAuthInterceptor(cfg.JWTSecret)
	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger,
		grpc.UnaryInterceptor(authInterceptor.Unary()),
		grpc.StreamInterceptor(authInterceptor.Stream()),
	)
	if err := server.RegisterHTTPHandler(httpHandler, cfg.JWTSecret, handlers.NewMetrics("crm")); err != nil {
		logger.Fatal("Failed to register HTTP handler", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start servers", zap.Error(err))
		}
	}()

	waitForShutdown(server, logger)
}

// initDatabase maps the service config onto the store config.
func initDatabase(cfg *config.Config) *db.Config {
	return &db.Config{
		Driver:         cfg.DBDriver,
		Host:           cfg.DBHost,
		Port:           cfg.DBPort,
		User:           cfg.DBUser,
		Password:       cfg.DBPassword,
		DBName:         cfg.DBName,
		SSLMode:        cfg.DBSSLMode,
		Path:           cfg.DBPath,
		ConnectRetries: cfg.DBConnectRetries,
	}
}

// initProducer returns a Kafka producer, or a no-op one when no brokers are
// configured or Kafka is unreachable.
func initProducer(cfg *config.Config, logger *zap.Logger) eventProducer {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("No Kafka brokers configured, contact events disabled")
		return events.NopProducer{}
	}
	producer, err := events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
	if err != nil {
		logger.Warn("Kafka unavailable, contact events disabled", zap.Error(err))
		return events.NopProducer{}
	}
	return producer
}

func initAuditConsumer(cfg *config.Config, logger *zap.Logger) *events.Consumer {
	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaAuditGroup == "" {
		return nil
	}
	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.KafkaAuditGroup, cfg.Topic, logger)
	consumer.RegisterHandler(events.AuditHandler(logger))
	return consumer
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, then shuts down servers.
func waitForShutdown(server *handlers.Server, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	server.Stop()
	logger.Info("Servers stopped properly")
}
