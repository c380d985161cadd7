package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"plant-disease-service/data"
	"plant-disease-service/disease"
	"plant-disease-service/imaging"
	"plant-disease-service/logger"
	"plant-disease-service/model"
)

const recordTimeout = 5 * time.Second

// Preprocessor loads an image file into a model input tensor.
type Preprocessor interface {
	Load(path string, size int) ([]float32, error)
}

// Recorder stores prediction history.
type Recorder interface {
	Create(ctx context.Context, h *data.History) error
}

// Options tunes the request pipeline.
type Options struct {
	// TempDir receives uploads while they are checked and decoded.
	TempDir        string
	MaxUploadBytes int64
	ImageSize      int
	// Timeout bounds the wait for the classifier; zero waits forever.
	Timeout time.Duration
}

// PredictionResult is what a client gets back for a successful upload.
type PredictionResult struct {
	Filename       string `json:"filename"`
	PredictedClass string `json:"predicted_class"`
	Confidence     string `json:"confidence"`
	Severity       string `json:"severity"`
	Diagnosis      string `json:"diagnosis"`
	Treatment      string `json:"treatment"`

	ConfidenceScore float64 `json:"-"`
}

// InferenceService runs the upload -> diagnosis pipeline. The classifier
// and catalog are shared by all requests and never modified.
type InferenceService struct {
	classifier   model.Classifier
	preprocessor Preprocessor
	catalog      *disease.Catalog
	recorder     Recorder
	logger       logger.Logger
	opts         Options
}

func NewInferenceService(
	classifier model.Classifier,
	preprocessor Preprocessor,
	catalog *disease.Catalog,
	log logger.Logger,
	opts Options,
) *InferenceService {
	return &InferenceService{
		classifier:   classifier,
		preprocessor: preprocessor,
		catalog:      catalog,
		logger:       log,
		opts:         opts,
	}
}

// WithRecorder enables prediction history.
func (s *InferenceService) WithRecorder(r Recorder) *InferenceService {
	s.recorder = r
	return s
}

// Analyze stores the upload in a private temp file, checks its size,
// classifies it and removes the file again on every path. Errors are
// *ValidationError or *InternalError.
func (s *InferenceService) Analyze(ctx context.Context, filename string, content io.Reader) (*PredictionResult, error) {
	if filename == "" {
		return nil, NewValidationError(MsgNoSelectedFile)
	}

	result, err := s.analyzeUpload(ctx, filename, content)
	s.record(ctx, filename, result, err)
	return result, err
}

func (s *InferenceService) analyzeUpload(ctx context.Context, filename string, content io.Reader) (*PredictionResult, error) {
	path, err := s.store(filename, content)
	if err != nil {
		return nil, err
	}
	defer s.remove(ctx, path)

	return s.AnalyzeFile(ctx, filename, path)
}

// AnalyzeFile classifies an image already on disk. The file is left in place.
func (s *InferenceService) AnalyzeFile(ctx context.Context, filename, path string) (*PredictionResult, error) {
	tensor, err := s.preprocessor.Load(path, s.opts.ImageSize)
	if err != nil {
		if errors.Is(err, imaging.ErrUndecodable) {
			s.logger.Warnf(ctx, "decode %s failed: %v", filename, err)
			return nil, NewValidationError(MsgUndecodable)
		}
		return nil, internal(fmt.Errorf("preprocess image: %w", err))
	}

	probabilities, err := s.infer(ctx, tensor)
	if err != nil {
		s.logger.Errorf(ctx, "inference on %s failed: %v", filename, err)
		return nil, internal(err)
	}

	idx, p, err := model.ArgMax(probabilities)
	if err != nil {
		return nil, internal(err)
	}

	label := s.catalog.Resolve(idx)
	confidence := float64(p) * 100
	rec := s.catalog.Diagnose(label)

	result := &PredictionResult{
		Filename:        filename,
		PredictedClass:  label,
		Confidence:      fmt.Sprintf("%.2f%%", confidence),
		Severity:        disease.Severity(label, confidence),
		Diagnosis:       rec.Diagnosis,
		Treatment:       rec.Treatment,
		ConfidenceScore: confidence,
	}

	s.logger.Infof(ctx, "predicted %s for %s (index %d, %s, %s)",
		label, filename, idx, result.Confidence, result.Severity)

	return result, nil
}

// store copies at most MaxUploadBytes+1 bytes into a uniquely named file.
// Oversized uploads are deleted before returning.
func (s *InferenceService) store(filename string, content io.Reader) (string, error) {
	if err := os.MkdirAll(s.opts.TempDir, 0o755); err != nil {
		return "", internal(fmt.Errorf("create temp dir: %w", err))
	}

	path := filepath.Join(s.opts.TempDir, uuid.New().String()+safeExt(filename))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", internal(fmt.Errorf("create temp file: %w", err))
	}

	_, copyErr := io.CopyN(f, content, s.opts.MaxUploadBytes+1)
	closeErr := f.Close()
	if copyErr != nil && !errors.Is(copyErr, io.EOF) {
		os.Remove(path)
		return "", internal(fmt.Errorf("store upload: %w", copyErr))
	}
	if closeErr != nil {
		os.Remove(path)
		return "", internal(fmt.Errorf("store upload: %w", closeErr))
	}

	info, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return "", internal(fmt.Errorf("stat upload: %w", err))
	}
	if info.Size() > s.opts.MaxUploadBytes {
		os.Remove(path)
		return "", FileTooLarge(s.opts.MaxUploadBytes)
	}

	return path, nil
}

func (s *InferenceService) remove(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warnf(ctx, "failed to remove temp file %s: %v", path, err)
	}
}

type inference struct {
	probabilities []float32
	err           error
}

func (s *InferenceService) infer(ctx context.Context, tensor []float32) ([]float32, error) {
	if s.opts.Timeout <= 0 {
		return s.classifier.Predict(tensor)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan inference, 1)
	go func() {
		p, err := s.classifier.Predict(tensor)
		done <- inference{probabilities: p, err: err}
	}()

	select {
	case out := <-done:
		return out.probabilities, out.err
	case <-ctx.Done():
		// The classifier holds its lock until the call returns, so later
		// requests queue behind it.
		go func() {
			<-done
			s.logger.Warnf(ctx, "abandoned inference finished after %s", time.Since(start).Round(time.Millisecond))
		}()
		return nil, fmt.Errorf("inference did not complete: %w", ctx.Err())
	}
}

func (s *InferenceService) record(ctx context.Context, filename string, result *PredictionResult, err error) {
	if s.recorder == nil {
		return
	}

	h := &data.History{Filename: filename, Status: data.StatusSuccess}
	if err != nil {
		h.Status = data.StatusFail
		h.Error = err.Error()
	} else {
		h.PredictedClass = result.PredictedClass
		h.Confidence = result.ConfidenceScore
		h.Severity = result.Severity
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.Create(ctx, h); err != nil {
		s.logger.Warnf(ctx, "record history for %s failed: %v", filename, err)
	}
}

// safeExt returns the lowercase extension of filename if it is short and
// alphanumeric, otherwise "".
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
