package research

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/research-bot/pkg/clients"
	"github.com/mikeboe/research-bot/pkg/config"
	"github.com/mikeboe/research-bot/pkg/search"
)

// NewEngineFromConfig builds an engine on the configured model and search
// provider.
func NewEngineFromConfig(ctx context.Context, cfg *config.Config, rcfg *config.ResearchConfig, logger *slog.Logger) (*ResearchEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	model, err := clients.NewCompleter(ctx, cfg, cfg.ReasoningModel)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	provider, err := search.NewProvider(cfg, rcfg.SearchTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("init search provider: %w", err)
	}

	engine := NewEngine(model, provider, rcfg)
	engine.SetLogger(logger)
	return engine, nil
}
