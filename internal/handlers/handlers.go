package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/photo-check/internal/logging"
	"github.com/example/photo-check/internal/usecase"
)

// DefaultMaxUploadSize is the multipart body limit used when Options leaves it unset.
const DefaultMaxUploadSize = 16 << 20

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	uploadField     = "file1"
)

var allowedExtensions = []string{"png", "jpg", "jpeg", "gif", "bmp", "webp"}

// Analyzer runs the analysis flow for one upload.
type Analyzer interface {
	Analyze(ctx context.Context, requestID, filename string, image []byte) (*usecase.Report, error)
}

// Options carries what the routes need besides the analyzer.
type Options struct {
	MaxUploadBytes int64
	APIURL         string
	APIKeyStatus   string
	Logger         *zap.Logger
}

// RegisterRoutes wires the HTTP handlers to the Gin router. Middlewares in
// uploadGuards run before the upload handler only.
func RegisterRoutes(router *gin.Engine, uc Analyzer, opts Options, uploadGuards ...gin.HandlerFunc) {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.Named("handlers")

	router.Use(RequestID(), Recovery(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"api_url":        opts.APIURL,
			"api_key_status": opts.APIKeyStatus,
			"timestamp":      time.Now().Format("2006-01-02 15:04:05"),
		})
	})

	handlers := append(append([]gin.HandlerFunc{}, uploadGuards...), upload(uc, opts.MaxUploadBytes, logger))
	router.POST("/upload", handlers...)
}

// RequestID propagates an incoming X-Request-ID when it is a UUID and
// assigns a new one otherwise.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		if incoming, err := uuid.Parse(strings.TrimSpace(c.GetHeader(requestIDHeader))); err == nil {
			id = incoming.String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Recovery converts panics into the generic 500 response.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.WithOperation(logger, "handlers.recovery", c.GetString(requestIDKey)).
			Error("unexpected error", zap.Any("panic", recovered), zap.Stack("stack"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "An unexpected error occurred while processing your image.",
			"details": fmt.Sprint(recovered),
		})
	})
}

func upload(uc Analyzer, maxBytes int64, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString(requestIDKey)
		opLogger := logging.WithOperation(logger, "handlers.upload", requestID)
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		file, err := c.FormFile(uploadField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File too large. Maximum size is %dMB.", maxBytes>>20)})
				return
			}
			if selectedNothing(c) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
			return
		}

		if file.Filename == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
			return
		}
		if msg := checkExtension(file.Filename); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			opLogger.Error("failed to read upload", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}
		if len(data) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Empty file uploaded"})
			return
		}
		opLogger.Info("processing upload", zap.String("filename", file.Filename), zap.Int("bytes", len(data)))

		report, err := uc.Analyze(c.Request.Context(), requestID, file.Filename, data)
		if err != nil {
			var classErr *usecase.ClassificationError
			if errors.As(err, &classErr) {
				// The page renders classifier failures itself, so they stay 200.
				c.JSON(http.StatusOK, classErr.Body())
				return
			}
			opLogger.Error("analysis failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "An unexpected error occurred while processing your image.",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, report)
	}
}

// selectedNothing reports whether the upload field was sent without a file
// name, which multipart parsing stores as a plain value.
func selectedNothing(c *gin.Context) bool {
	form := c.Request.MultipartForm
	if form == nil {
		return false
	}
	_, ok := form.Value[uploadField]
	return ok
}

// checkExtension returns a user-facing message when name is not an allowed
// image file name, or "" when it is.
func checkExtension(name string) string {
	supported := strings.Join(allowedExtensions, ", ")
	if !strings.Contains(name, ".") {
		return "File must have an extension. Supported types: " + supported
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return ""
		}
	}
	return fmt.Sprintf("Unsupported file type: %s. Supported types: %s", ext, supported)
}
