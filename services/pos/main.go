package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err = initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	if cfg.Telemetry.Enabled {
		tp, err := initTracer(ctx, cfg.Telemetry)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()

		mp, err := initMetrics(ctx, cfg.Telemetry)
		if err != nil {
			logger.Fatal("Failed to initialize metrics", zap.Error(err))
		}
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				logger.Warn("Error shutting down meter", zap.Error(err))
			}
		}()
	}
	tracer := otel.Tracer(serviceName)

	// Document store: sem ele o serviço não sobe
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize document store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer store.Close(context.Background())

	idempotency, closeIdempotency := openIdempotencyStore(ctx, cfg)
	defer closeIdempotency()

	var publisher SaleEventPublisher = NopSaleEventPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = NewKafkaSaleEventPublisher(cfg.Kafka)
		logger.Info("✅ Sale events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.SalesTopic))
	}
	defer publisher.Close()

	var mailer Mailer
	if cfg.Mail.APIURL != "" {
		mailer = NewHTTPMailer(cfg.Mail)
	} else {
		logger.Warn("ℹ️ MAIL_API_URL not set, password reset requests will fail")
	}

	// Initialize dependencies
	users := NewUserRepository(store)
	products := NewProductRepository(store)
	customers := NewCustomerRepository(store)
	sales := NewSaleRepository(store)

	tokens := NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	handler := NewHandler(
		NewAuthUseCase(users, tokens, mailer, cfg.Auth, tracer),
		NewProductUseCase(products, tracer, cfg.SaleStockMaxRetries),
		NewCustomerUseCase(customers),
		NewSaleUseCase(products, customers, sales, publisher, idempotency, tracer, cfg.SaleStockMaxRetries),
		NewReportUseCase(products, customers, sales),
		tokens,
		store,
		tracer,
		cfg.MaxImageBytes,
	)

	gin.SetMode(gin.ReleaseMode)
	r := newRouter(handler, cfg.Telemetry.Enabled)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info("🚀 POS Service listening", zap.String("port", cfg.Port), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}

func newRouter(handler *Handler, traced bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if traced {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(requestIDMiddleware(), accessLogMiddleware())
	r.MaxMultipartMemory = handler.maxImageBytes + 1<<20

	handler.RegisterRoutes(r)
	return r
}

// openStore abre o backend configurado em STORE_BACKEND
func openStore(ctx context.Context, cfg Config) (DocumentStore, error) {
	switch cfg.StoreBackend {
	case StoreBackendMemory:
		logger.Warn("ℹ️ Using in-memory document store, data is lost on restart")
		return NewMemoryDocumentStore(), nil

	case StoreBackendMongo:
		db, err := ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		store := NewMongoDocumentStore(db)
		if err := store.CreateIndexes(ctx); err != nil {
			store.Close(context.Background())
			return nil, err
		}
		logger.Info("✅ Connected to MongoDB", zap.String("database", cfg.Mongo.Database))
		return store, nil

	case StoreBackendPostgres:
		pool, err := initDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := runMigrations(cfg.Postgres); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPostgresDocumentStore(pool), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// openIdempotencyStore usa o Redis quando REDIS_ADDR está definido
func openIdempotencyStore(ctx context.Context, cfg Config) (IdempotencyStore, func()) {
	if cfg.Redis.Addr == "" {
		return NewMemoryIdempotencyStore(cfg.IdempotencyTTL), func() {}
	}
	client, err := NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	logger.Info("✅ Connected to redis", zap.String("addr", cfg.Redis.Addr))
	return NewRedisIdempotencyStore(client, cfg.IdempotencyTTL), func() { client.Close() }
}
