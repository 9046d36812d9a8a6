package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	config "github.com/xilidan/signposting/config/ai"
	gateway "github.com/xilidan/signposting/gateways/ai"
	"github.com/xilidan/signposting/pkg/gen"
	"github.com/xilidan/signposting/pkg/logger"
	"github.com/xilidan/signposting/services/ai/blob"
	"github.com/xilidan/signposting/services/ai/fetcher"
	"github.com/xilidan/signposting/services/ai/llm"
	"github.com/xilidan/signposting/services/ai/server"
	"github.com/xilidan/signposting/services/ai/speech"
	"github.com/xilidan/signposting/services/ai/storage"
	"github.com/xilidan/signposting/services/ai/translate"
	"github.com/xilidan/signposting/services/ai/usecase"
)

func main() {
	log := logger.Default()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env", slog.String("error", err.Error()))
	}

	cfg := config.MustLoad()

	log = logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		Output:     os.Stderr,
		AddSource:  true,
		JSONFormat: cfg.LogJSON,
	})
	logger.SetDefault(log)

	ctx := logger.WithContext(context.Background(), log)

	rootCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("failed to run()", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	stg, err := storage.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer stg.Close(context.Background())
	log.Info("storage opened", slog.String("driver", cfg.Database.Driver))

	bucket, err := blob.NewGCS(ctx, cfg.Storage.BucketName, log)
	if err != nil {
		return err
	}
	defer bucket.Close()

	recognizer, err := speech.NewGoogle(ctx, log)
	if err != nil {
		return err
	}
	defer recognizer.Close()

	translator, err := translate.NewGoogle(ctx, log)
	if err != nil {
		return err
	}
	defer translator.Close()

	signposting, err := llm.New(ctx, llm.Backend(cfg.LLM.SignpostingBackend), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create signposting llm: %w", err)
	}
	qa, err := llm.New(ctx, llm.Backend(cfg.LLM.QABackend), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create qa llm: %w", err)
	}

	usc := usecase.New(cfg, usecase.Deps{
		Fetcher:     fetcher.New(&cfg.Twilio, log, fetcher.WithMaxBytes(cfg.Storage.MaxMediaBytes)),
		Blob:        bucket,
		Speech:      recognizer,
		Storage:     stg,
		Translator:  translator,
		Signposting: signposting,
		QA:          qa,
		IDs:         gen.UUID(),
	})

	health := server.NewServerOptions(log)
	grpcServer, err := health.NewServer()
	if err != nil {
		return fmt.Errorf("failed to create grpc server: %w", err)
	}

	address := fmt.Sprintf(":%d", cfg.GRPCPort)
	grpcListener, err := net.Listen("tcp", address)
	if err != nil {
		log.Error("failed to listen on grpc port", slog.String("error", err.Error()))
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	serverErrors := make(chan error, 2)
	go func() {
		serverErrors <- grpcServer.Serve(grpcListener)
	}()
	log.Info("grpc service started", slog.String("address", address))

	httpServer := gateway.New(cfg, usc, health, log)
	go func() {
		serverErrors <- httpServer.Start(ctx)
	}()
	health.SetServing(true)

	select {
	case err = <-serverErrors:
		log.Error("server has closed", slog.String("error", fmt.Sprint(err)))
		health.Shutdown()
	case <-ctx.Done():
		log.Info("start shutdown")
		health.Shutdown()
		err = <-serverErrors
	}

	grpcServer.GracefulStop()
	return err
}
