package classifier

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/photo-check/internal/logging"
)

const maxResponseBytes = 8 << 20

// HTTPClient posts raw image bytes to an inference endpoint with a bearer
// credential.
type HTTPClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient builds a client with a fixed request timeout.
func NewHTTPClient(url, apiKey string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("classifier_http"),
	}
}

// Classify sends one POST and interprets the reply.
func (c *HTTPClient) Classify(ctx context.Context, image []byte) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(image))
	if err != nil {
		return nil, logging.NewOperationError("classifier.build_request", "", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := logging.NewOperationError("classifier.http_post", "", err)
		c.logger.Error("classifier request failed", zap.Error(wrapped), zap.Duration("elapsed", time.Since(start)))
		return nil, wrapped
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	if err != nil {
		wrapped := logging.NewOperationError("classifier.read_body", "", err)
		c.logger.Error("classifier body read failed", zap.Error(wrapped))
		return nil, wrapped
	}

	c.logger.Info("classifier responded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
		zap.Int("body_bytes", len(body)),
	)
	if resp.StatusCode == http.StatusBadRequest {
		c.logger.Error("classifier rejected request", zap.ByteString("body", body))
	}

	return InterpretResponse(resp.StatusCode, body, elapsed), nil
}
