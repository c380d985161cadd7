package api

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"plant-disease-service/data"
	"plant-disease-service/logger"
	"plant-disease-service/service"
)

const (
	msgHistoryDisabled = "Prediction history is not enabled."
	msgHistoryNotFound = "Prediction not found."
)

// Analyzer runs the prediction pipeline for one upload.
type Analyzer interface {
	Analyze(ctx context.Context, filename string, content io.Reader) (*service.PredictionResult, error)
}

// HistoryLister reads stored predictions.
type HistoryLister interface {
	FindAll(ctx context.Context, pagination data.Pagination) ([]data.History, error)
	FindByID(ctx context.Context, id uuid.UUID) (*data.History, error)
}

type RESTConfig struct {
	BodyLimit int
	// MaxUploadBytes is the upload limit quoted when a body exceeds BodyLimit.
	MaxUploadBytes int64
	StaticDir string
	// AccessLog enables per-request access logging.
	AccessLog bool
}

// NewRESTServer wires the HTTP routes. history may be nil.
func NewRESTServer(cfg RESTConfig, analyzer Analyzer, history HistoryLister, log logger.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(cfg.MaxUploadBytes),
	})

	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(fiberlogger.New())
	}

	app.Get("/health", HandleHealth)
	app.Post("/predict", HandlePredict(analyzer, log))
	app.Get("/history", HandleHistory(history))
	app.Get("/history/:id", HandleHistoryEntry(history))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	return app
}

func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

// HandlePredict accepts a multipart upload in the "file" field.
func HandlePredict(analyzer Analyzer, log logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := uuid.New().String()
		c.Set("X-Request-ID", requestID)
		ctx := logger.WithRequestID(c.UserContext(), requestID)

		form, err := c.MultipartForm()
		if err != nil {
			return badRequest(c, service.MsgNoFilePart)
		}

		files := form.File["file"]
		if len(files) == 0 {
			// A file input submitted with nothing selected arrives as a
			// part with an empty filename, which is parsed as a plain value.
			if _, ok := form.Value["file"]; ok {
				return badRequest(c, service.MsgNoSelectedFile)
			}
			return badRequest(c, service.MsgNoFilePart)
		}
		header := files[0]

		file, err := header.Open()
		if err != nil {
			log.Errorf(ctx, "open upload %s failed: %v", header.Filename, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": (&service.InternalError{Err: err}).Error(),
			})
		}
		defer file.Close()

		result, err := analyzer.Analyze(ctx, header.Filename, file)
		if err != nil {
			return writeError(c, err)
		}

		return c.JSON(result)
	}
}

// HandleHistory lists recorded predictions, newest first.
func HandleHistory(history HistoryLister) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if history == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msgHistoryDisabled})
		}

		page := data.Pagination{
			Page:     c.QueryInt("page", 1),
			PageSize: c.QueryInt("page_size", 20),
		}.Normalize()

		rows, err := history.FindAll(c.UserContext(), page)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{
			"page":      page.Page,
			"page_size": page.PageSize,
			"results":   rows,
		})
	}
}

// HandleHistoryEntry returns one recorded prediction by id.
func HandleHistoryEntry(history HistoryLister) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if history == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msgHistoryDisabled})
		}

		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msgHistoryNotFound})
		}

		row, err := history.FindByID(c.UserContext(), id)
		if errors.Is(err, data.ErrHistoryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msgHistoryNotFound})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(row)
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func writeError(c *fiber.Ctx, err error) error {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return badRequest(c, verr.Message)
	}

	var ierr *service.InternalError
	if !errors.As(err, &ierr) {
		ierr = &service.InternalError{Err: err}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ierr.Error()})
}

// errorHandler renders errors that escape the handlers. Bodies rejected by
// the server for exceeding BodyLimit get the same 400 as oversized uploads.
func errorHandler(maxUploadBytes int64) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			code = ferr.Code
		}
		if code == fiber.StatusRequestEntityTooLarge && maxUploadBytes > 0 {
			return badRequest(c, service.FileTooLarge(maxUploadBytes).Message)
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
