package config

import (
	"strconv"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/maxbolgarin/errm"
	"github.com/seele-review/seele/internal/agent"
	"github.com/seele-review/seele/internal/forge"
	"github.com/seele-review/seele/internal/notify"
	"github.com/seele-review/seele/internal/reviewer"
	"github.com/seele-review/seele/internal/server"
)

// Config represents the main application configuration. Each forge section is
// enabled by setting its token; at least one must be configured.
type Config struct {
	Server server.Config   `yaml:"server"`
	GitHub GitHubConfig    `yaml:"github"`
	GitLab GitLabConfig    `yaml:"gitlab"`
	Agent  agent.Config    `yaml:"agent"`
	Review reviewer.Config `yaml:"review"`
	Notify notify.Config   `yaml:"notify"`

	// Port is a shortcut for server.address used in container setups
	Port int `yaml:"port" env:"PORT"`
}

// GitHubConfig represents the GitHub forge section
type GitHubConfig struct {
	BaseURL       string `yaml:"base_url" env:"GITHUB_API_BASE"`
	Token         string `yaml:"token" env:"GITHUB_TOKEN"`
	WebhookSecret string `yaml:"webhook_secret" env:"GITHUB_WEBHOOK_SECRET"`
	BotUsername   string `yaml:"bot_username" env:"GITHUB_BOT_USERNAME"`
}

// GitLabConfig represents the GitLab forge section
type GitLabConfig struct {
	BaseURL       string `yaml:"base_url" env:"GITLAB_API_BASE"`
	Token         string `yaml:"token" env:"GITLAB_TOKEN"`
	WebhookSecret string `yaml:"webhook_secret" env:"GITLAB_WEBHOOK_SECRET"`
	BotUsername   string `yaml:"bot_username" env:"GITLAB_BOT_USERNAME"`
}

// Load reads the configuration from an optional YAML file and the
// environment. Environment variables win over file values.
func Load(path string) (Config, error) {
	var cfg Config
	var err error

	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return cfg, errm.Wrap(err, "failed to read config")
	}

	if cfg.Port != 0 && cfg.Server.Address == "" {
		cfg.Server.Address = "0.0.0.0:" + strconv.Itoa(cfg.Port)
	}

	if !cfg.HasGitHub() && !cfg.HasGitLab() {
		return cfg, errm.New("at least one forge must be configured: set github.token or gitlab.token")
	}

	return cfg, nil
}

func (c Config) HasGitHub() bool {
	return c.GitHub.Token != ""
}

func (c Config) HasGitLab() bool {
	return c.GitLab.Token != ""
}

// GitHubForgeConfig maps the GitHub section to a forge client configuration
func (c Config) GitHubForgeConfig() forge.Config {
	return forge.Config{
		Type:          forge.GitHub,
		BaseURL:       c.GitHub.BaseURL,
		Token:         c.GitHub.Token,
		WebhookSecret: c.GitHub.WebhookSecret,
		BotUsername:   c.GitHub.BotUsername,
	}
}

// GitLabForgeConfig maps the GitLab section to a forge client configuration
func (c Config) GitLabForgeConfig() forge.Config {
	return forge.Config{
		Type:          forge.GitLab,
		BaseURL:       c.GitLab.BaseURL,
		Token:         c.GitLab.Token,
		WebhookSecret: c.GitLab.WebhookSecret,
		BotUsername:   c.GitLab.BotUsername,
	}
}
