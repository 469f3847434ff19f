package forge

import (
	"github.com/maxbolgarin/erro"
	"github.com/seele-review/seele/internal/forge/github"
	"github.com/seele-review/seele/internal/forge/gitlab"
	"github.com/seele-review/seele/internal/model"
	"github.com/seele-review/seele/internal/model/interfaces"
)

// NewClient creates a new forge client based on the configuration
func NewClient(cfg Config) (interfaces.ForgeClient, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, erro.Wrap(err, "validate config")
	}

	cfgForClient := model.ForgeConfig{
		BaseURL:       cfg.BaseURL,
		Token:         cfg.Token,
		WebhookSecret: cfg.WebhookSecret,
		BotUsername:   cfg.BotUsername,
	}

	var client interfaces.ForgeClient
	var err error

	switch cfg.Type {
	case GitLab:
		client, err = gitlab.New(cfgForClient)
	case GitHub:
		client, err = github.New(cfgForClient)
	default:
		return nil, erro.New("unsupported forge type: %s", cfg.Type)
	}
	if err != nil {
		return nil, erro.Wrap(err, "failed to create forge client")
	}

	return client, nil
}
