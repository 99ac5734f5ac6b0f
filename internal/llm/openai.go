package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"scbackend/internal/domain"
)

// ErrTruncated is returned when a JSON-mode reply was cut off by the token limit;
// a partial object is never handed to callers that parse it.
var ErrTruncated = errors.New("llm reply truncated")

const maxReplyBytes = 1 << 20

// OpenAIProvider talks to any chat-completions compatible endpoint.
type OpenAIProvider struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

func NewOpenAIProvider(client *http.Client, baseURL, apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		client:   client,
		endpoint: strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:   apiKey,
	}
}

type openAIRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *openAIFormat `json:"response_format,omitempty"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIReply struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func newOpenAIRequest(req domain.LLMRequest) openAIRequest {
	out := openAIRequest{Model: req.Model, MaxTokens: req.MaxTokens}
	if req.Temperature > 0 {
		t := req.Temperature
		out.Temperature = &t
	}
	if req.JSON {
		out.ResponseFormat = &openAIFormat{Type: "json_object"}
	}
	out.Messages = make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (p *OpenAIProvider) Complete(ctx context.Context, req domain.LLMRequest) (domain.LLMResponse, error) {
	buf, err := json.Marshal(newOpenAIRequest(req))
	if err != nil {
		return domain.LLMResponse{}, fmt.Errorf("encode openai request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(buf))
	if err != nil {
		return domain.LLMResponse{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return domain.LLMResponse{}, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return domain.LLMResponse{}, fmt.Errorf("read openai reply: %w", err)
	}
	var reply openAIReply
	decodeErr := json.Unmarshal(body, &reply)
	if reply.Error != nil {
		return domain.LLMResponse{}, fmt.Errorf("openai %s (status %d): %s", reply.Error.Type, resp.StatusCode, reply.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return domain.LLMResponse{}, fmt.Errorf("openai status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return domain.LLMResponse{}, fmt.Errorf("decode openai reply: %w", decodeErr)
	}
	if len(reply.Choices) == 0 {
		return domain.LLMResponse{}, ErrEmptyResponse
	}
	choice := reply.Choices[0]
	if req.JSON && choice.FinishReason == "length" {
		return domain.LLMResponse{}, ErrTruncated
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return domain.LLMResponse{}, ErrEmptyResponse
	}
	return domain.LLMResponse{Content: choice.Message.Content}, nil
}
