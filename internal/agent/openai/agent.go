package openai

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/seele-review/seele/internal/model"
	"github.com/seele-review/seele/internal/model/interfaces"
)

const (
	defaultModel = "gpt-4o-mini"
	defaultURL   = "https://api.openai.com/v1"

	completionsPath = "/chat/completions"

	dataPrefix = "data: "
	doneEvent  = "[DONE]"

	// streamBufferSize bounds a single SSE line, generous for long deltas.
	streamBufferSize = 1 << 20
)

var _ interfaces.AgentAPI = (*Agent)(nil)

// Agent implements the AgentAPI interface over any OpenAI-compatible
// chat completion endpoint (OpenAI, DashScope, Azure, local models).
type Agent struct {
	cli *cliex.HTTP
	cfg model.ModelConfig
}

// New creates a new OpenAI-compatible agent
func New(ctx context.Context, cli *cliex.HTTP, config model.ModelConfig) (*Agent, error) {
	if config.APIKey == "" {
		return nil, errm.New("API key is required")
	}
	config.Model = lang.Check(config.Model, defaultModel)
	config.URL = lang.Check(config.URL, defaultURL)

	cli.C().SetAuthToken(config.APIKey)

	agent := &Agent{
		cli: cli,
		cfg: config,
	}

	// Test connection if needed (may take tokens)
	if config.IsTest {
		if err := agent.testConnection(ctx); err != nil {
			return nil, errm.Wrap(err, "failed to connect to API")
		}
	}

	return agent, nil
}

// CallAPI makes a streaming request to the chat completion endpoint and
// concatenates the delta tokens into a single response string.
func (a *Agent) CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error) {
	reqBody := chatCompletionRequest{
		Model: a.cfg.Model,
		Messages: []message{
			{
				Role:    "system",
				Content: req.SystemPrompt,
			},
			{
				Role:    "user",
				Content: req.Prompt,
			},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	}

	requestURL := strings.TrimSuffix(lang.Check(req.URL, a.cfg.URL), "/") + completionsPath

	resp, err := a.cli.C().R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetBody(reqBody).
		SetDoNotParseResponse(true).
		Post(requestURL)
	if err != nil {
		return model.APIResponse{}, errm.Wrap(err, "failed to make API request")
	}

	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 300 {
		return model.APIResponse{}, readAPIError(body, resp.StatusCode())
	}

	return readStream(body)
}

// readStream consumes the SSE event stream until the [DONE] terminator
func readStream(body io.Reader) (model.APIResponse, error) {
	var (
		content strings.Builder
		out     model.APIResponse
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), streamBufferSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		data := strings.TrimPrefix(line, dataPrefix)
		if data == doneEvent {
			break
		}

		var chunk streamChunk
		if err := jsoniter.Unmarshal([]byte(data), &chunk); err != nil {
			return model.APIResponse{}, errm.Wrap(err, "failed to parse stream chunk")
		}
		if chunk.Error != nil {
			return model.APIResponse{}, errm.Errorf("API error: %s", chunk.Error.Message)
		}

		if len(chunk.Choices) > 0 {
			content.WriteString(chunk.Choices[0].Delta.Content)
		}
		if chunk.Created != 0 {
			out.CreateTime = time.Unix(chunk.Created, 0)
		}
		if chunk.Usage != nil {
			out.PromptTokens = chunk.Usage.PromptTokens
			out.CompletionTokens = chunk.Usage.CompletionTokens
			out.TotalTokens = chunk.Usage.TotalTokens
		}
	}
	if err := scanner.Err(); err != nil {
		return model.APIResponse{}, errm.Wrap(err, "failed to read API stream")
	}

	out.Content = strings.TrimSpace(content.String())

	return out, nil
}

// readAPIError extracts the error message from a non-2xx response body
func readAPIError(body io.Reader, status int) error {
	raw, err := io.ReadAll(io.LimitReader(body, streamBufferSize))
	if err != nil {
		return errm.Errorf("API request failed with status %d", status)
	}

	var errResp errorResponse
	if err := jsoniter.Unmarshal(raw, &errResp); err == nil && errResp.Error != nil {
		return errm.Errorf("API error (status %d): %s", status, errResp.Error.Message)
	}

	return errm.Errorf("API request failed with status %d: %s", status, strings.TrimSpace(string(raw)))
}

// testConnection tests the connection to the API
func (a *Agent) testConnection(ctx context.Context) error {
	_, err := a.CallAPI(ctx, model.APIRequest{
		Prompt:      "Respond with 'OK' if you can understand this message.",
		MaxTokens:   10,
		Temperature: 0.5,
	})
	if err != nil {
		return errm.Wrap(err, "connection test failed")
	}
	return nil
}
