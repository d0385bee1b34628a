package htmlpdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/costaverde/voucher-service/internal/application/port"
)

// maxErrorBody caps how much of a failed response is read back for the
// error message.
const maxErrorBody = 2048

// Client calls the external HTML-to-PDF rasterizer service. The service
// accepts a JSON body with the full HTML document and the page format,
// and answers with raw PDF bytes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new rasterizer client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type renderRequest struct {
	HTML   string `json:"html"`
	Format string `json:"format"`
}

type renderError struct {
	Error string `json:"error"`
}

// RenderPDF implements port.Rasterizer
func (c *Client) RenderPDF(ctx context.Context, html string, pageFormat string) ([]byte, error) {
	body, err := json.Marshal(renderRequest{HTML: html, Format: pageFormat})
	if err != nil {
		return nil, fmt.Errorf("failed to encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Surface the context error so callers can tell a deadline from
		// a transport failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("Rasterizer request failed", zap.Error(err))
		return nil, fmt.Errorf("rasterizer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readErrorMessage(resp.Body)
		c.logger.Error("Rasterizer returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, fmt.Errorf("rasterizer returned status %d: %s", resp.StatusCode, msg)
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered document: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("rasterizer returned an empty document")
	}

	c.logger.Info("Document rasterized",
		zap.Int("bytes", len(pdf)),
		zap.Duration("elapsed", time.Since(started)))
	return pdf, nil
}

// readErrorMessage pulls the error field from a JSON failure body,
// falling back to the raw text.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return "no response body"
	}

	var parsed renderError
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return string(raw)
}

// Verify interface compliance
var _ port.Rasterizer = (*Client)(nil)
