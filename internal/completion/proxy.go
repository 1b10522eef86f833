package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/models"
)

const maxResponseBytes = 1 << 20

// ProxyClient posts the conversation to a completion proxy.
// Request body: [{"role":"system",...},{"role":"user",...}].
// A 2xx body is the report itself, JSON-encoded; anything else carries {"error": "..."}.
type ProxyClient struct {
	url        string
	httpClient *http.Client
	logger     *common.Logger
}

// NewProxyClient creates a client for the proxy at url.
func NewProxyClient(url string, timeout time.Duration, logger *common.Logger) *ProxyClient {
	return &ProxyClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// RequestReport implements Requester.
func (c *ProxyClient) RequestReport(ctx context.Context, system, user models.ConversationMessage) (string, error) {
	payload, err := json.Marshal([]models.ConversationMessage{system, user})
	if err != nil {
		return "", completionError(err, "encode messages")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", completionError(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", completionError(err, "failed to reach completion proxy")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", completionError(err, "failed to read response")
	}

	if c.logger != nil {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Int("bytes", len(body)).
			Dur("duration", time.Since(start)).
			Msg("completion proxy responded")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &failure); err != nil {
			return "", completionError(err, "worker error: status %d with undecodable body", resp.StatusCode)
		}
		return "", completionError(nil, "worker error: %s", failure.Error)
	}

	report, err := decodeReport(body)
	if err != nil {
		return "", err
	}
	return report, nil
}

// decodeReport treats the decoded JSON body as the report. A JSON string is
// unquoted; any other JSON value is used as its compact text.
func decodeReport(body []byte) (string, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", completionError(err, "response is not JSON")
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return "", completionError(err, "compact response")
		}
		text = compact.String()
	}

	if text == "" {
		return "", completionError(nil, "empty report")
	}
	return text, nil
}
