package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/handlers"
	"storefront-service/internal/auth"
	"storefront-service/internal/cache"
	"storefront-service/internal/cart"
	"storefront-service/internal/checkout"
	"storefront-service/internal/consul"
	"storefront-service/internal/ledger"
	"storefront-service/internal/orders"
	"storefront-service/internal/products"
	"storefront-service/internal/profiles"
	"storefront-service/internal/stores/kafka"
	"storefront-service/internal/stores/postgres"
	"storefront-service/internal/webhooks"
	"storefront-service/pkg/logkey"

	"github.com/joho/godotenv"
)

// welcomePoints is granted through the ledger when an account-created event
// bootstraps a profile.
const welcomePoints = 100

func main() {
	if err := run(); err != nil {
		slog.Error("startup failed", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	prefix := os.Getenv("SERVICE_ENDPOINT_PREFIX")
	if prefix == "" {
		return fmt.Errorf("SERVICE_ENDPOINT_PREFIX is not set")
	}

	db, err := postgres.OpenDB()
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, "migrations"); err != nil {
		return err
	}

	keys, err := loadKeys()
	if err != nil {
		return err
	}

	productsConf, err := products.NewConf(db)
	if err != nil {
		return err
	}
	cartConf, err := cart.NewConf(db)
	if err != nil {
		return err
	}
	profilesConf, err := profiles.NewConf(db)
	if err != nil {
		return err
	}
	ledgerConf, err := ledger.NewConf(db)
	if err != nil {
		return err
	}
	ordersConf, err := orders.NewConf(db)
	if err != nil {
		return err
	}
	webhooksConf, err := webhooks.NewConf(db)
	if err != nil {
		return err
	}

	var kafkaConf *kafka.Conf
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers != "" {
		kafkaConf, err = kafka.NewConf(brokers)
		if err != nil {
			return fmt.Errorf("connecting to kafka: %w", err)
		}
		defer kafkaConf.Close()
	} else {
		slog.Warn("KAFKA_BROKERS not set, domain events disabled")
	}

	var producer checkout.Producer
	if kafkaConf != nil {
		producer = kafkaConf
	}
	checkoutConf, err := checkout.NewConf(db, productsConf, profilesConf, cartConf, checkout.StripeSessions{}, producer)
	if err != nil {
		return err
	}

	var cacheConf *cache.Conf
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cacheConf, err = cache.NewConf(addr, os.Getenv("REDIS_PASSWORD"))
		if err != nil {
			slog.Warn("redis unavailable, catalog cache disabled", slog.String(logkey.ERROR, err.Error()))
			cacheConf = nil
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if brokers != "" {
		go consumeAccountCreated(ctx, brokers, profilesConf)
	}

	if client, err := consul.NewClient(); err == nil {
		host := os.Getenv("APP_HOST")
		if host == "" {
			host = "localhost"
		}
		if err := consul.RegisterService(client, "storefront", host, consul.ServicePort()); err != nil {
			slog.Warn("consul registration failed", slog.String(logkey.ERROR, err.Error()))
		}
	} else {
		slog.Warn("consul unavailable", slog.String(logkey.ERROR, err.Error()))
	}

	api := handlers.API(prefix, keys, handlers.Deps{
		Products: productsConf,
		Cart:     cartConf,
		Profiles: profilesConf,
		Ledger:   ledgerConf,
		Orders:   ordersConf,
		Webhooks: webhooksConf,
		Checkout: checkoutConf,
		Cache:    cacheConf,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", consul.ServicePort()),
		Handler:      api,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("addr", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

func loadKeys() (*auth.Keys, error) {
	publicPEM, err := os.ReadFile(os.Getenv("JWT_PUBLIC_KEY_FILE"))
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	// The private key is optional; only token-minting deployments carry it.
	var privatePEM []byte
	if path := os.Getenv("JWT_PRIVATE_KEY_FILE"); path != "" {
		privatePEM, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading private key: %w", err)
		}
	}

	return auth.NewKeys(privatePEM, publicPEM)
}

// consumeAccountCreated bootstraps a profile with its welcome grant for every
// account-created event from the user service.
func consumeAccountCreated(ctx context.Context, brokers string, profilesConf *profiles.Conf) {
	err := kafka.ConsumeMessages(ctx, brokers, kafka.TopicAccountCreated, kafka.ConsumerGroup,
		func(key, value []byte) error {
			var event kafka.AccountCreatedEvent
			if err := json.Unmarshal(value, &event); err != nil {
				return fmt.Errorf("unmarshalling account-created event: %w", err)
			}
			created, err := profilesConf.Bootstrap(ctx, event.ID, event.Email, welcomePoints)
			if err != nil {
				return err
			}
			if created {
				slog.Info("profile bootstrapped", slog.String(logkey.UserID, event.ID))
			}
			return nil
		})
	if err != nil && ctx.Err() == nil {
		slog.Error("account-created consumer stopped", slog.String(logkey.ERROR, err.Error()))
	}
}
