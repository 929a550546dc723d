/**
 * @description
 * This is the main entry point for the registry-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * external API clients, message brokers, repositories, the lifecycle services,
 * and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/approvalclient: Client for the off-chain approval API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/landchain/registry-service/internal/api"
	"github.com/landchain/registry-service/internal/app"
	"github.com/landchain/registry-service/internal/config"
	"github.com/landchain/registry-service/internal/domain"
	"github.com/landchain/registry-service/internal/store"
	"github.com/landchain/registry-service/pkg/approvalclient"
	rmrabbit "github.com/landchain/registry-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}
	if strings.TrimSpace(cfg.JWTSigningSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt signing secret must be configured\" env=JWT_SIGNING_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting registry-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer for ledger jobs. When RabbitMQ is
	// unavailable at startup the fallback keeps the service up: writes still
	// persist locally and dispatch failures are logged.
	var jobPublisher rmrabbit.Publisher
	producer, err := rmrabbit.NewJobProducer(cfg.RabbitMQURL, cfg.LedgerJobExchange, cfg.LedgerJobRoutingKey)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		jobPublisher = &rmrabbit.JobProducerFallback{}
	} else {
		defer producer.Close()
		jobPublisher = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the off-chain approval API.
	approvalClient := approvalclient.NewClient(cfg.OffchainAPIBaseURL, cfg.OffchainAPIKey)

	// Optional Redis connection for submission rate limiting.
	var limiter *app.RedisSubmissionRateLimiter
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; submission rate limiting disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; submission rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; submission rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				limiter = app.NewRedisSubmissionRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the lifecycle services with their dependencies.
	approverWallets := map[domain.ApproverKind]string{
		domain.ApproverKindNotary:       cfg.NotaryApproverAddress,
		domain.ApproverKindFinancial:    cfg.FinancialApproverAddress,
		domain.ApproverKindMunicipality: cfg.MunicipalityApproverAddress,
	}
	propertyService := app.NewPropertyService(repository, jobPublisher, approvalClient)
	transferService := app.NewTransferService(repository, jobPublisher, propertyService, approverWallets)

	// Initialize the API handlers.
	registryHandlers := api.NewRegistryHandlers(propertyService, transferService, limiter, cfg.SubmissionRateLimitPerMinute)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/registry", api.RegistryRoutes(registryHandlers, cfg.JWTSigningSecret, cfg.InternalAPIKey))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	// Wire up the ledger event consumer: the same confirmations served by the
	// webhook surface also arrive over the queue.
	ledgerConsumer := app.NewLedgerEventConsumer(propertyService, transferService)

	rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
	}
	defer rabbitConsumer.Close()

	eventBindings := map[string]func([]byte) bool{
		"ledger.property.registration": ledgerConsumer.HandleRegistrationUpdate,
		"ledger.property.transferred":  ledgerConsumer.HandlePropertyTransferred,
		"ledger.transfer.configured":   ledgerConsumer.HandleTransferConfigured,
		"ledger.transfer.completed":    ledgerConsumer.HandleTransferCompleted,
	}

	if err := rabbitConsumer.ConsumeWithBindings(cfg.LedgerEventExchange, cfg.LedgerEventQueue, eventBindings); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"ledger event consumer start failed\" err=%v", err)
	}

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
