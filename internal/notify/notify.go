package notify

import (
	"context"
	"fmt"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/seele-review/seele/internal/model"
	"github.com/seele-review/seele/internal/model/interfaces"
)

// New creates a notifier for the configured platform. The "none" platform
// returns a no-op notifier so callers never have to nil-check.
func New(cfg Config) (interfaces.Notifier, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	cli, err := cliex.NewWithConfig(cliex.Config{
		UserAgent:      cfg.UserAgent,
		RequestTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to create HTTP client")
	}

	switch cfg.Platform {
	case PlatformSlack:
		return newSlackNotifier(cli, cfg.WebhookURL), nil
	case PlatformLark:
		return newLarkNotifier(cli, cfg.WebhookURL), nil
	default:
		return noopNotifier{}, nil
	}
}

// noopNotifier is used when notifications are disabled
type noopNotifier struct{}

func (noopNotifier) SendReviewNotification(context.Context, model.Notification) error { return nil }
func (noopNotifier) SendErrorNotification(context.Context, model.Notification) error  { return nil }

// reviewResult returns the icon and result text for a finding count
func reviewResult(reviewsCount int) (icon, text string) {
	if reviewsCount == 0 {
		return "✅", "No issues found"
	}
	if reviewsCount == 1 {
		return "📝", "1 review comment"
	}
	return "📝", fmt.Sprintf("%d review comments", reviewsCount)
}
