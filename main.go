package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"plant-disease-service/api"
	"plant-disease-service/config"
	"plant-disease-service/data"
	"plant-disease-service/disease"
	"plant-disease-service/imaging"
	"plant-disease-service/logger"
	"plant-disease-service/model"
	"plant-disease-service/service"
)

func main() {
	cfg, err := config.LoadDefault()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx := context.Background()
	err = run(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Errorf(ctx, "%v", err)
	}
	zapLogger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run wires the service and blocks until a signal or a server failure.
func run(ctx context.Context, cfg *config.Config, zapLogger *logger.ZapLogger) error {
	catalog, err := disease.Default()
	if err != nil {
		return fmt.Errorf("class tables are inconsistent: %w", err)
	}
	if catalog.NumClasses() != cfg.NumClasses {
		return fmt.Errorf("model emits %d classes but the class table has %d", cfg.NumClasses, catalog.NumClasses())
	}

	layout, err := imaging.ParseLayout(cfg.TensorLayout)
	if err != nil {
		return err
	}

	zapLogger.Infof(ctx, "Loading model from: %s", cfg.ModelPath)
	onnxModel, err := model.NewONNXModel(model.Options{
		Path:        cfg.ModelPath,
		LibraryPath: cfg.ONNXLibraryPath,
		InputName:   cfg.ModelInputName,
		OutputName:  cfg.ModelOutputName,
		InputShape:  cfg.InputShape(),
		OutputShape: cfg.OutputShape(),
	})
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer onnxModel.Close()

	inferenceService := service.NewInferenceService(
		onnxModel,
		imaging.NewPreprocessor(layout),
		catalog,
		zapLogger,
		service.Options{
			TempDir:        cfg.TempDir,
			MaxUploadBytes: cfg.MaxUploadBytes,
			ImageSize:      cfg.ImageSize,
			Timeout:        cfg.InferenceTimeout,
		},
	)

	var history api.HistoryLister
	if cfg.DatabaseURL != "" {
		db, err := data.Open(ctx, cfg.DatabaseURL, 30*time.Second)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer data.Close(db)

		repo := data.NewHistoryRepository(db)
		if err := repo.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate history table: %w", err)
		}
		inferenceService.WithRecorder(repo)
		history = repo
		zapLogger.Infof(ctx, "Prediction history enabled")
	}

	restServer := api.NewRESTServer(api.RESTConfig{
		BodyLimit:      cfg.BodyLimit(),
		MaxUploadBytes: cfg.MaxUploadBytes,
		StaticDir:      cfg.StaticDir,
		AccessLog:      true,
	}, inferenceService, history, zapLogger)

	grpcServer := grpc.NewServer()
	api.RegisterLeafDiagnosisServer(grpcServer, api.NewLeafDiagnosisServer(inferenceService, cfg.MaxUploadBytes, zapLogger))

	errCh := make(chan error, 2)

	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			errCh <- err
			return
		}
		zapLogger.Infof(ctx, "Starting gRPC server on :%s", cfg.GRPCPort)
		errCh <- grpcServer.Serve(lis)
	}()

	go func() {
		zapLogger.Infof(ctx, "Starting Fiber server on :%s", cfg.Port)
		errCh <- restServer.Listen(":" + cfg.Port)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigCh:
		zapLogger.Infof(ctx, "Received %v, shutting down", sig)
	case serveErr = <-errCh:
		serveErr = fmt.Errorf("server stopped: %w", serveErr)
	}

	if err := restServer.ShutdownWithTimeout(10 * time.Second); err != nil {
		zapLogger.Warnf(ctx, "Fiber shutdown error: %v", err)
	}
	grpcServer.GracefulStop()

	zapLogger.Infof(ctx, "Service stopped")
	return serveErr
}
