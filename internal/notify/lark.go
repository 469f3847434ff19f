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

var _ interfaces.Notifier = (*larkNotifier)(nil)

// larkNotifier delivers interactive card messages to a Lark (Feishu) webhook
type larkNotifier struct {
	cli        *cliex.HTTP
	webhookURL string
	log        logze.Logger
}

type larkPayload struct {
	MsgType string   `json:"msg_type"`
	Card    larkCard `json:"card"`
}

type larkCard struct {
	Config   larkCardConfig `json:"config"`
	Header   larkHeader     `json:"header"`
	Elements []larkElement  `json:"elements"`
}

type larkCardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type larkHeader struct {
	Title    larkText `json:"title"`
	Template string   `json:"template"`
}

type larkElement struct {
	Tag     string       `json:"tag"`
	Fields  []larkField  `json:"fields,omitempty"`
	Text    *larkText    `json:"text,omitempty"`
	Actions []larkAction `json:"actions,omitempty"`
}

type larkField struct {
	IsShort bool     `json:"is_short"`
	Text    larkText `json:"text"`
}

type larkText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type larkAction struct {
	Tag  string   `json:"tag"`
	Text larkText `json:"text"`
	Type string   `json:"type"`
	URL  string   `json:"url"`
}

type larkResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func newLarkNotifier(cli *cliex.HTTP, webhookURL string) *larkNotifier {
	return &larkNotifier{
		cli:        cli,
		webhookURL: webhookURL,
		log:        logze.With("component", "notifier", "platform", "lark"),
	}
}

func (l *larkNotifier) SendReviewNotification(ctx context.Context, n model.Notification) error {
	webhook := lang.Check(n.PushURL, l.webhookURL)
	if webhook == "" {
		l.log.Warn("webhook URL not configured, skipping notification")
		return nil
	}

	icon, resultText := reviewResult(n.ReviewsCount)
	color := lang.If(n.ReviewsCount == 0, "green", "orange")

	elements := []larkElement{
		{
			Tag: "div",
			Fields: []larkField{
				shortField("**Project:**\n" + n.ProjectName),
				shortField("**Author:**\n" + n.UserName),
				shortField("**MR:**\n" + larkMRLink(n.MRURL, n.MRTitle, "N/A")),
				shortField("**Result:**\n" + resultText),
			},
		},
		{
			Tag: "div",
			Fields: []larkField{
				{Text: larkMarkdown(fmt.Sprintf("**Branch:**\n`%s` → `%s`", n.SourceBranch, n.TargetBranch))},
			},
		},
	}

	if n.Content != "" {
		content := larkMarkdown(n.Content)
		elements = append(elements,
			larkElement{Tag: "hr"},
			larkElement{Tag: "div", Text: &content},
		)
	}
	elements = appendMRButton(elements, n.MRURL, "primary")

	return l.post(ctx, webhook, larkCard{
		Config: larkCardConfig{WideScreenMode: true},
		Header: larkHeader{
			Title:    larkText{Tag: "plain_text", Content: icon + " AI Code Review Completed"},
			Template: color,
		},
		Elements: elements,
	})
}

func (l *larkNotifier) SendErrorNotification(ctx context.Context, n model.Notification) error {
	webhook := lang.Check(n.PushURL, l.webhookURL)
	if webhook == "" {
		return nil
	}

	errorText := larkMarkdown("**Error:**\n" + n.Error)
	elements := []larkElement{
		{
			Tag: "div",
			Fields: []larkField{
				shortField("**Project:**\n" + n.ProjectName),
				shortField("**MR:**\n" + larkMRLink(n.MRURL, n.MRTitle, n.MRTitle)),
			},
		},
		{Tag: "div", Text: &errorText},
	}
	elements = appendMRButton(elements, n.MRURL, "danger")

	return l.post(ctx, webhook, larkCard{
		Config: larkCardConfig{WideScreenMode: true},
		Header: larkHeader{
			Title:    larkText{Tag: "plain_text", Content: "❌ AI Code Review Failed"},
			Template: "red",
		},
		Elements: elements,
	})
}

func (l *larkNotifier) post(ctx context.Context, webhook string, card larkCard) error {
	var resp larkResponse
	if _, err := l.cli.Post(ctx, webhook, larkPayload{MsgType: "interactive", Card: card}, &resp); err != nil {
		return errm.Wrap(err, "failed to send Lark notification")
	}
	if resp.Code != 0 {
		return errm.Errorf("Lark webhook rejected notification: %s", resp.Msg)
	}

	l.log.Debug("notification sent")
	return nil
}

func shortField(content string) larkField {
	return larkField{IsShort: true, Text: larkMarkdown(content)}
}

func larkMarkdown(content string) larkText {
	return larkText{Tag: "lark_md", Content: content}
}

// larkMRLink builds a Markdown [text](url) link with a fallback text
func larkMRLink(mrURL, mrTitle, fallback string) string {
	switch {
	case mrURL != "" && mrTitle != "":
		return fmt.Sprintf("[%s](%s)", mrTitle, mrURL)
	case mrURL != "":
		return fmt.Sprintf("[View MR](%s)", mrURL)
	default:
		return fallback
	}
}

func appendMRButton(elements []larkElement, mrURL, buttonType string) []larkElement {
	if mrURL == "" {
		return elements
	}
	return append(elements, larkElement{
		Tag: "action",
		Actions: []larkAction{{
			Tag:  "button",
			Text: larkText{Tag: "plain_text", Content: "View Merge Request"},
			Type: buttonType,
			URL:  mrURL,
		}},
	})
}
