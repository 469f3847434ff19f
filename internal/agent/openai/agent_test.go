package openai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadStream(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"id":"1","created":1700000000,"choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"}}]}`,
		``,
		`data: {"id":"1","choices":[{"index":0,"delta":{"content":" world"}}]}`,
		`data: {"id":"1","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`,
		`data: [DONE]`,
		`data: {"id":"1","choices":[{"index":0,"delta":{"content":"ignored after done"}}]}`,
	}, "\n")

	resp, err := readStream(strings.NewReader(stream))
	require.NoError(t, err)

	assert.Equal(t, "Hello world", resp.Content)
	assert.Equal(t, 10, resp.PromptTokens)
	assert.Equal(t, 2, resp.CompletionTokens)
	assert.Equal(t, 12, resp.TotalTokens)
	assert.False(t, resp.CreateTime.IsZero())
}

func TestReadStreamSkipsNonDataLines(t *testing.T) {
	stream := ": keep-alive comment\n" +
		"event: message\n" +
		`data: {"choices":[{"delta":{"content":"ok"}}]}` + "\n" +
		"data: [DONE]\n"

	resp, err := readStream(strings.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestReadStreamAPIError(t *testing.T) {
	stream := `data: {"error":{"message":"rate limit exceeded","type":"rate_limit"}}` + "\n"

	_, err := readStream(strings.NewReader(stream))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestReadStreamInvalidChunk(t *testing.T) {
	_, err := readStream(strings.NewReader("data: {not json}\n"))
	assert.Error(t, err)
}

func TestReadAPIError(t *testing.T) {
	err := readAPIError(strings.NewReader(`{"error":{"message":"invalid api key"}}`), 401)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Contains(t, err.Error(), "401")

	err = readAPIError(strings.NewReader("plain text failure"), 503)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plain text failure")
}
