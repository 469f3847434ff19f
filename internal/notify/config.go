package notify

import (
	"slices"
	"time"

	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/lang"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "seele-review/0.1.0 (https://github.com/seele-review/seele)"
)

// Platform is the chat platform notifications are delivered to
type Platform string

const (
	PlatformNone  Platform = "none"
	PlatformSlack Platform = "slack"
	PlatformLark  Platform = "lark"
)

var supportedPlatforms = []Platform{PlatformNone, PlatformSlack, PlatformLark}

// Config represents notification configuration. The webhook URL may be left
// empty and supplied per request via the push URL override.
type Config struct {
	Platform   Platform      `yaml:"platform" env:"NOTIFY_PLATFORM"` // none, slack, lark
	WebhookURL string        `yaml:"webhook_url" env:"NOTIFY_WEBHOOK_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"NOTIFY_TIMEOUT"`
	UserAgent  string        `yaml:"user_agent" env:"NOTIFY_USER_AGENT"`
}

func (c *Config) PrepareAndValidate() error {
	c.Platform = Platform(lang.Check(string(c.Platform), string(PlatformNone)))
	if !slices.Contains(supportedPlatforms, c.Platform) {
		return erro.New("invalid notification platform: %s", c.Platform)
	}

	c.Timeout = lang.Check(c.Timeout, defaultTimeout)
	c.UserAgent = lang.Check(c.UserAgent, defaultUserAgent)

	return nil
}
