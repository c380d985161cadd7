package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"plant-disease-service/config"
	"plant-disease-service/disease"
	"plant-disease-service/imaging"
	"plant-disease-service/logger"
	"plant-disease-service/model"
	"plant-disease-service/service"
)

var (
	dir     = flag.String("dir", "test_images", "folder with .jpg/.jpeg/.png images")
	out     = flag.String("out", "results.csv", "CSV file to write")
	workers = flag.Int("workers", runtime.NumCPU(), "images preprocessed in parallel")
)

func main() {
	flag.Parse()

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

	n, err := run(context.Background(), cfg, zapLogger)
	zapLogger.Sync()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Predictions for %d images written to %s\n", n, *out)
}

func run(ctx context.Context, cfg *config.Config, zapLogger *logger.ZapLogger) (int, error) {
	catalog, err := disease.Default()
	if err != nil {
		return 0, fmt.Errorf("class tables are inconsistent: %w", err)
	}
	layout, err := imaging.ParseLayout(cfg.TensorLayout)
	if err != nil {
		return 0, err
	}

	onnxModel, err := model.NewONNXModel(model.Options{
		Path:        cfg.ModelPath,
		LibraryPath: cfg.ONNXLibraryPath,
		InputName:   cfg.ModelInputName,
		OutputName:  cfg.ModelOutputName,
		InputShape:  cfg.InputShape(),
		OutputShape: cfg.OutputShape(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load model: %w", err)
	}
	defer onnxModel.Close()

	svc := service.NewInferenceService(onnxModel, imaging.NewPreprocessor(layout), catalog, zapLogger, service.Options{
		ImageSize: cfg.ImageSize,
		Timeout:   cfg.InferenceTimeout,
	})

	rows, err := svc.PredictDir(ctx, *dir, *workers)
	if err != nil {
		return 0, fmt.Errorf("batch prediction failed: %w", err)
	}

	if err := writeCSV(*out, rows); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", *out, err)
	}
	return len(rows), nil
}

func writeCSV(path string, rows []service.BatchRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	w.Write([]string{"filename", "predicted_class"})
	for _, r := range rows {
		w.Write([]string{r.Filename, r.PredictedClass})
	}
	w.Flush()

	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
