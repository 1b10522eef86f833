package completion

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/config"
	"github.com/bobmcallan/dodgy-dave/internal/models"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiRequester calls the Gemini API directly. The client is created on
// first use because genai.NewClient needs a context.
type GeminiRequester struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *common.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiRequester creates a requester from the completion config.
func NewGeminiRequester(cfg config.CompletionConfig, timeout time.Duration, logger *common.Logger) (*GeminiRequester, error) {
	if cfg.APIKey == "" {
		return nil, completionError(nil, "gemini api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiRequester{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.URL,
		model:     model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func (r *GeminiRequester) getClient(ctx context.Context) (*genai.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  r.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if r.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: r.baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	r.client = client
	return client, nil
}

// RequestReport implements Requester.
func (r *GeminiRequester) RequestReport(ctx context.Context, system, user models.ConversationMessage) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	client, err := r.getClient(ctx)
	if err != nil {
		return "", completionError(err, "create gemini client")
	}

	gc := &genai.GenerateContentConfig{}
	if system.Content != "" {
		gc.SystemInstruction = genai.NewContentFromText(system.Content, genai.RoleUser)
	}
	if r.maxTokens > 0 {
		gc.MaxOutputTokens = int32(r.maxTokens)
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, r.model, genai.Text(user.Content), gc)
	if err != nil {
		return "", completionError(err, "gemini request failed")
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", completionError(nil, "empty response from gemini")
	}

	text := resp.Text()

	if r.logger != nil {
		r.logger.Debug().
			Str("model", r.model).
			Int("response_length", len(text)).
			Dur("duration", time.Since(start)).
			Msg("gemini completion finished")
	}

	if text == "" {
		return "", completionError(nil, "empty text in gemini response")
	}
	return text, nil
}
