package agent

import (
	"context"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/seele-review/seele/internal/agent/gemini"
	"github.com/seele-review/seele/internal/agent/openai"
	"github.com/seele-review/seele/internal/agent/prompts"
	"github.com/seele-review/seele/internal/model"
	"github.com/seele-review/seele/internal/model/interfaces"
)

var _ interfaces.ReviewAgent = (*Agent)(nil)

// Agent turns an extended diff into a list of review findings using an LLM
// backend behind the AgentAPI contract.
type Agent struct {
	cfg    Config
	logger logze.Logger
	pb     *prompts.Builder
	api    interfaces.AgentAPI
}

func New(ctx context.Context, cfg Config) (*Agent, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}
	cli, err := cliex.NewWithConfig(cliex.Config{
		BaseURL:        cfg.BaseURL,
		UserAgent:      cfg.UserAgent,
		ProxyAddress:   cfg.ProxyURL,
		RequestTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to create HTTP client")
	}

	pb, err := prompts.NewBuilder(cfg.Language)
	if err != nil {
		return nil, errm.Wrap(err, "failed to load prompts")
	}

	agent := &Agent{
		cfg:    cfg,
		logger: logze.With("component", "agent", "type", string(cfg.Type)),
		pb:     pb,
	}

	modelCfg := model.ModelConfig{
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		URL:      cfg.BaseURL,
		ProxyURL: cfg.ProxyURL,
		IsTest:   cfg.IsTest,
	}

	switch cfg.Type {
	case OpenAI:
		agent.api, err = openai.New(ctx, cli, modelCfg)
	case Gemini:
		agent.api, err = gemini.New(ctx, modelCfg)
	default:
		return nil, errm.Errorf("unsupported agent type: %s", cfg.Type)
	}
	if err != nil {
		return nil, errm.Wrap(err, "failed to create agent")
	}

	return agent, nil
}

// Review sends one extended-diff chunk to the model and parses the YAML
// review list out of the Markdown answer.
func (a *Agent) Review(ctx context.Context, extendedDiff string) ([]*model.ReviewItem, error) {
	prompt := a.pb.BuildReviewPrompt(extendedDiff)

	response, err := a.api.CallAPI(ctx, model.APIRequest{
		Prompt:       prompt.UserPrompt,
		SystemPrompt: prompt.SystemPrompt,
		MaxTokens:    a.cfg.MaxTokens,
		Temperature:  a.cfg.Temperature,
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to call API")
	}
	if response.Content == "" {
		return nil, errm.New("empty response from API")
	}

	a.logger.Debug("model response received",
		"prompt_tokens", response.PromptTokens,
		"completion_tokens", response.CompletionTokens)

	reviews, err := parseReviews(response.Content)
	if err != nil {
		return nil, err
	}

	return reviews, nil
}
