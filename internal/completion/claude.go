package completion

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/config"
	"github.com/bobmcallan/dodgy-dave/internal/models"
)

const (
	defaultClaudeModel     = "claude-sonnet-4-20250514"
	defaultClaudeMaxTokens = 1024
)

// ClaudeRequester calls the Anthropic Messages API directly.
type ClaudeRequester struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *common.Logger
}

// NewClaudeRequester creates a requester from the completion config. A non-empty
// cfg.URL overrides the API base URL.
func NewClaudeRequester(cfg config.CompletionConfig, timeout time.Duration, logger *common.Logger) (*ClaudeRequester, error) {
	if cfg.APIKey == "" {
		return nil, completionError(nil, "anthropic api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.URL != "" {
		opts = append(opts, option.WithBaseURL(cfg.URL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}

	return &ClaudeRequester{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// RequestReport implements Requester.
func (r *ClaudeRequester) RequestReport(ctx context.Context, system, user models.ConversationMessage) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: int64(r.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user.Content)),
		},
	}
	if system.Content != "" {
		params.System = []anthropic.TextBlockParam{{Text: system.Content}}
	}

	start := time.Now()
	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", completionError(err, "claude request failed")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if r.logger != nil {
		r.logger.Debug().
			Str("model", r.model).
			Int("response_length", text.Len()).
			Dur("duration", time.Since(start)).
			Msg("claude completion finished")
	}

	if text.Len() == 0 {
		return "", completionError(nil, "empty response from claude")
	}
	return text.String(), nil
}
