package notify

import (
	"context"
	"testing"

	"github.com/seele-review/seele/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToNoop(t *testing.T) {
	notifier, err := New(Config{})
	require.NoError(t, err)

	assert.NoError(t, notifier.SendReviewNotification(context.Background(), model.Notification{}))
	assert.NoError(t, notifier.SendErrorNotification(context.Background(), model.Notification{}))
}

func TestNewRejectsUnknownPlatform(t *testing.T) {
	_, err := New(Config{Platform: "telegram"})
	assert.Error(t, err)
}

func TestReviewResult(t *testing.T) {
	tests := []struct {
		count    int
		wantIcon string
		wantText string
	}{
		{0, "✅", "No issues found"},
		{1, "📝", "1 review comment"},
		{5, "📝", "5 review comments"},
	}

	for _, tt := range tests {
		icon, text := reviewResult(tt.count)
		assert.Equal(t, tt.wantIcon, icon)
		assert.Equal(t, tt.wantText, text)
	}
}

func TestSlackMRLink(t *testing.T) {
	assert.Equal(t, "<https://x/mr/1|Fix bug>", slackMRLink("https://x/mr/1", "Fix bug", "N/A"))
	assert.Equal(t, "<https://x/mr/1|View MR>", slackMRLink("https://x/mr/1", "", "N/A"))
	assert.Equal(t, "N/A", slackMRLink("", "Fix bug", "N/A"))
}

func TestLarkMRLink(t *testing.T) {
	assert.Equal(t, "[Fix bug](https://x/mr/1)", larkMRLink("https://x/mr/1", "Fix bug", "N/A"))
	assert.Equal(t, "[View MR](https://x/mr/1)", larkMRLink("https://x/mr/1", "", "N/A"))
	assert.Equal(t, "N/A", larkMRLink("", "Fix bug", "N/A"))
}

func TestSendSkipsWithoutWebhook(t *testing.T) {
	// No configured URL and no per-request override: nothing to send, no error
	slack := newSlackNotifier(nil, "")
	assert.NoError(t, slack.SendReviewNotification(context.Background(), model.Notification{}))
	assert.NoError(t, slack.SendErrorNotification(context.Background(), model.Notification{}))

	lark := newLarkNotifier(nil, "")
	assert.NoError(t, lark.SendReviewNotification(context.Background(), model.Notification{}))
	assert.NoError(t, lark.SendErrorNotification(context.Background(), model.Notification{}))
}

func TestAppendMRButton(t *testing.T) {
	elements := appendMRButton(nil, "https://x/mr/1", "primary")
	require.Len(t, elements, 1)
	assert.Equal(t, "action", elements[0].Tag)
	require.Len(t, elements[0].Actions, 1)
	assert.Equal(t, "primary", elements[0].Actions[0].Type)
	assert.Equal(t, "https://x/mr/1", elements[0].Actions[0].URL)

	assert.Empty(t, appendMRButton(nil, "", "primary"))
}
