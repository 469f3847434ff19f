package forge

import (
	"slices"

	"github.com/maxbolgarin/errm"
)

type ForgeType string

// SupportedForgeTypes defines the supported code forge types
const (
	GitLab ForgeType = "gitlab"
	GitHub ForgeType = "github"
)

var supportedForgeTypes = []ForgeType{GitLab, GitHub}

// Config represents code forge configuration
type Config struct {
	Type          ForgeType `yaml:"type" env:"FORGE_TYPE"`
	BaseURL       string    `yaml:"base_url" env:"FORGE_BASE_URL"`
	Token         string    `yaml:"token" env:"FORGE_TOKEN"`
	WebhookSecret string    `yaml:"webhook_secret" env:"FORGE_WEBHOOK_SECRET"`
	BotUsername   string    `yaml:"bot_username" env:"FORGE_BOT_USERNAME"`
}

func (c *Config) PrepareAndValidate() error {
	if c.Token == "" {
		return errm.New("token is required")
	}

	// Verification is fail-closed, so an unset secret would reject every webhook.
	if c.WebhookSecret == "" {
		return errm.New("webhook_secret is required")
	}

	if c.Type == "" || !slices.Contains(supportedForgeTypes, c.Type) {
		return errm.New("invalid forge type: %s", c.Type)
	}

	return nil
}
