package notify

import (
	"context"
	"fmt"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/seele-review/seele/internal/model"
	"github.com/seele-review/seele/internal/model/interfaces"
)

var _ interfaces.Notifier = (*slackNotifier)(nil)

// slackNotifier delivers plain-text messages to a Slack incoming webhook
type slackNotifier struct {
	cli        *cliex.HTTP
	webhookURL string
	log        logze.Logger
}

type slackMessage struct {
	Text string `json:"text"`
}

func newSlackNotifier(cli *cliex.HTTP, webhookURL string) *slackNotifier {
	return &slackNotifier{
		cli:        cli,
		webhookURL: webhookURL,
		log:        logze.With("component", "notifier", "platform", "slack"),
	}
}

func (s *slackNotifier) SendReviewNotification(ctx context.Context, n model.Notification) error {
	webhook := lang.Check(n.PushURL, s.webhookURL)
	if webhook == "" {
		s.log.Warn("webhook URL not configured, skipping notification")
		return nil
	}

	icon, resultText := reviewResult(n.ReviewsCount)

	message := fmt.Sprintf("%s *AI Code Review Completed*\n\n"+
		"*Project:* %s\n"+
		"*MR:* %s\n"+
		"*Author:* %s\n"+
		"*Branch:* `%s` → `%s`\n"+
		"*Result:* %s",
		icon, n.ProjectName, slackMRLink(n.MRURL, n.MRTitle, "N/A"),
		n.UserName, n.SourceBranch, n.TargetBranch, resultText)

	if n.Content != "" {
		message += "\n\n" + n.Content
	}

	return s.post(ctx, webhook, message)
}

func (s *slackNotifier) SendErrorNotification(ctx context.Context, n model.Notification) error {
	webhook := lang.Check(n.PushURL, s.webhookURL)
	if webhook == "" {
		return nil
	}

	message := fmt.Sprintf("❌ *AI Code Review Failed*\n\n"+
		"*Project:* %s\n"+
		"*MR:* %s\n"+
		"*Error:* %s",
		n.ProjectName, slackMRLink(n.MRURL, n.MRTitle, n.MRTitle), n.Error)

	return s.post(ctx, webhook, message)
}

func (s *slackNotifier) post(ctx context.Context, webhook, message string) error {
	if _, err := s.cli.Post(ctx, webhook, slackMessage{Text: message}, nil); err != nil {
		return errm.Wrap(err, "failed to send Slack notification")
	}

	s.log.Debug("notification sent")
	return nil
}

// slackMRLink builds a Slack-style <url|text> link with a fallback text
func slackMRLink(mrURL, mrTitle, fallback string) string {
	switch {
	case mrURL != "" && mrTitle != "":
		return fmt.Sprintf("<%s|%s>", mrURL, mrTitle)
	case mrURL != "":
		return fmt.Sprintf("<%s|View MR>", mrURL)
	default:
		return fallback
	}
}
