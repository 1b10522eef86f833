// Package completion turns the formatted market summary into a narrative report.
package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/config"
	"github.com/bobmcallan/dodgy-dave/internal/models"
)

// Provider names accepted in [completion] provider.
const (
	ProviderProxy  = "proxy"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// Requester sends exactly one system instruction and one user message and
// returns the report text. Failures are *models.WorkflowError of kind
// KindCompletionError.
type Requester interface {
	RequestReport(ctx context.Context, system, user models.ConversationMessage) (string, error)
}

// New builds the Requester selected by cfg.Provider.
func New(cfg config.CompletionConfig, timeout time.Duration, logger *common.Logger) (Requester, error) {
	switch cfg.Provider {
	case "", ProviderProxy:
		return NewProxyClient(cfg.URL, timeout, logger), nil
	case ProviderClaude:
		return NewClaudeRequester(cfg, timeout, logger)
	case ProviderGemini:
		return NewGeminiRequester(cfg, timeout, logger)
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}

func completionError(err error, format string, args ...any) error {
	return models.NewError(models.KindCompletionError, "", err, format, args...)
}
