package regime

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Oracle is the language-model boundary. Complete sends one prompt and
// returns the raw completion text.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPOracle talks to an OpenAI-compatible chat completions endpoint.
type HTTPOracle struct {
	client    *resty.Client
	model     string
	maxTokens int
}

func NewHTTPOracle(baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *HTTPOracle {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &HTTPOracle{client: client, model: model, maxTokens: maxTokens}
}

func (o *HTTPOracle) Complete(ctx context.Context, prompt string) (string, error) {
	var out chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:     o.model,
			MaxTokens: o.maxTokens,
			Messages:  []chatMessage{{Role: "user", Content: prompt}},
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", errors.Wrap(err, "oracle request")
	}
	if resp.IsError() {
		return "", errors.Errorf("oracle returned %s", resp.Status())
	}
	if out.Error != nil {
		return "", errors.Errorf("oracle error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("oracle returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
