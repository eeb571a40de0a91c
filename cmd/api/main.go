package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"garment-storefront/internal/artifact"
	"garment-storefront/internal/auth"
	"garment-storefront/internal/config"
	"garment-storefront/internal/db"
	"garment-storefront/internal/events"
	"garment-storefront/internal/httpserver"
	orderrepo "garment-storefront/internal/repository/order"
	productrepo "garment-storefront/internal/repository/product"
	productsvc "garment-storefront/internal/service/product"
	"garment-storefront/internal/service/record"
)

func main() {
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	if err := config.LoadDotEnv(); err != nil {
		logger.Fatalf("load .env: %v", err)
	}
	cfg := config.FromEnv()
	if cfg.JWTSecret == "" {
		logger.Fatalf("JWT_SECRET is required")
	}

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	files, err := artifact.NewFileStore(cfg.ArtifactDir, cfg.FileURLHost)
	if err != nil {
		logger.Fatalf("init artifact store: %v", err)
	}

	publisher, err := events.New(events.Config{
		Driver:       cfg.EventsDriver,
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
	}, logger)
	if err != nil {
		logger.Fatalf("init events publisher: %v", err)
	}
	defer publisher.Close()

	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	productRepo := productrepo.NewPostgres(dbpool, logger)
	recordService := record.New(orderRepo, productRepo, files, publisher, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Orders:      recordService,
		Products:    productsvc.New(productRepo),
		Tokens:      auth.New(cfg.JWTSecret),
		ArtifactDir: files.Dir(),
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s events=%s", cfg.HTTPAddr, cfg.EventsDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
