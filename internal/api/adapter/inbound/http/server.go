package http_handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/anthanhphan/go-model-share/internal/api/config"
	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/metrics"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionHeader carries the viewer session used to supersede stale resolves.
const SessionHeader = "X-Viewer-Session"

// multipartOverhead leaves room for form boundaries and headers above the file limit.
const multipartOverhead = 1 << 20

type Server struct {
	app     *fiber.App
	cfg     *config.Config
	service port.ModelService
}

type uploadResponse struct {
	Record    domain.ModelRecord `json:"record"`
	Share     domain.ShareLink   `json:"share"`
	Persisted bool               `json:"persisted"`
}

type resolveResponse struct {
	Record domain.ModelRecord      `json:"record"`
	Source domain.ResolutionSource `json:"source"`
	Share  domain.ShareLink        `json:"share"`
}

func NewServer(cfg *config.Config, service port.ModelService) *Server {
	bodyLimit := 0 // fiber default
	if cfg.App.MaxFileSize > 0 {
		bodyLimit = int(cfg.App.MaxFileSize) + multipartOverhead
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		Immutable:             true,
		StreamRequestBody:     true,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(metrics.Middleware())

	s := &Server{
		app:     app,
		cfg:     cfg,
		service: service,
	}

	// Routes
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	s.app.Post("/models", s.handleUpload)
	s.app.Get("/models", s.handleList)
	s.app.Get("/models/:id", s.handleResolve)
	s.app.Get("/models/:id/share", s.handleShare)
	s.app.Delete("/models/:id", s.handleDelete)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// sendServiceError maps service errors onto HTTP statuses.
func (s *Server) sendServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return s.sendJSONError(c, fiber.StatusBadRequest, "Unsupported file type. Please upload a .glb or .gltf file")
	case errors.Is(err, domain.ErrInvalidModelID):
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid model id")
	case errors.Is(err, port.ErrPayloadTooLarge):
		return s.sendJSONError(c, fiber.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, port.ErrHostUnreachable):
		return s.sendJSONError(c, fiber.StatusBadGateway, "Network error, please retry")
	case errors.Is(err, port.ErrUploadFailed):
		return s.sendJSONError(c, fiber.StatusBadGateway, "Upload failed, please retry")
	case errors.Is(err, port.ErrModelNotFound):
		return s.sendJSONError(c, fiber.StatusNotFound, "Model link expired or unavailable")
	case errors.Is(err, port.ErrModelUnavailable):
		return s.sendJSONError(c, fiber.StatusServiceUnavailable, "Model host temporarily unavailable, please retry")
	case errors.Is(err, port.ErrSuperseded):
		return s.sendJSONError(c, fiber.StatusConflict, "Superseded by a newer request")
	default:
		return s.sendJSONError(c, fiber.StatusInternalServerError, "Internal error")
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	contentType := c.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Content-Type must be multipart/form-data")
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid Content-Type")
	}
	boundary, ok := params["boundary"]
	if !ok {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing boundary in Content-Type")
	}

	bodyStream := c.Context().RequestBodyStream()
	if bodyStream == nil {
		bodyStream = bytes.NewReader(c.Body())
	}
	mr := multipart.NewReader(bodyStream, boundary)

	var fileName string
	var data []byte

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s.sendJSONError(c, fiber.StatusBadRequest, fmt.Sprintf("Failed to read multipart: %v", err))
		}

		if part.FormName() == "file" && part.FileName() != "" {
			fileName = part.FileName()
			// Reject unsupported types before buffering the payload.
			if err := domain.ValidateModelFile(fileName); err != nil {
				_ = part.Close()
				return s.sendServiceError(c, err)
			}
			var src io.Reader = part
			if s.cfg.App.MaxFileSize > 0 {
				// One byte past the limit is enough for the service to report the file as too large.
				src = io.LimitReader(part, s.cfg.App.MaxFileSize+1)
			}
			data, err = io.ReadAll(src)
			_ = part.Close()
			if err != nil {
				return s.sendJSONError(c, fiber.StatusBadRequest, fmt.Sprintf("Failed to read file: %v", err))
			}
			break
		}
		_ = part.Close()
	}

	if fileName == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Missing 'file' part")
	}

	result, err := s.service.UploadModel(c.UserContext(), fileName, data)
	if err != nil {
		sdklogger.Warnw("Upload rejected", "file_name", fileName, "error", err.Error())
		return s.sendServiceError(c, err)
	}

	share, err := s.service.ShareLink(result.Record.ID)
	if err != nil {
		sdklogger.Warnw("Share link build failed", "model_id", result.Record.ID, "error", err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(uploadResponse{
		Record:    result.Record,
		Share:     share,
		Persisted: result.Persisted,
	})
}

func (s *Server) handleList(c *fiber.Ctx) error {
	records, err := s.service.ListModels(c.UserContext())
	if err != nil {
		sdklogger.Errorw("List models failed", "error", err.Error())
		return s.sendServiceError(c, err)
	}
	return c.JSON(fiber.Map{"models": records})
}

func (s *Server) handleResolve(c *fiber.Ctx) error {
	id := c.Params("id")

	session := c.Get(SessionHeader)
	if session == "" {
		session = uuid.NewString()
	}
	c.Set(SessionHeader, session)

	res, err := s.service.ResolveModel(c.UserContext(), session, id)
	if err != nil {
		return s.sendServiceError(c, err)
	}

	share, err := s.service.ShareLink(id)
	if err != nil {
		sdklogger.Warnw("Share link build failed", "model_id", id, "error", err.Error())
	}

	return c.JSON(resolveResponse{
		Record: res.Record,
		Source: res.Source,
		Share:  share,
	})
}

func (s *Server) handleShare(c *fiber.Ctx) error {
	link, err := s.service.ShareLink(c.Params("id"))
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(link)
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.service.DeleteModel(c.UserContext(), id); err != nil {
		sdklogger.Errorw("Delete failed", "model_id", id, "error", err.Error())
		return s.sendServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
