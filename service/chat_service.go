package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

var ErrEmptyReply = errors.New("model returned an empty reply")

// ChatService answers free-form regulation questions through the Gemini SDK.
// Unlike the evaluation path it holds a single client, so it does not rotate
// credentials.
type ChatService struct {
	client *genai.Client
	model  string
}

// ChatServiceOption is a functional option for ChatService
type ChatServiceOption func(*ChatService)

// ChatWithGeminiClient sets the Gemini client
func ChatWithGeminiClient(client *genai.Client) ChatServiceOption {
	return func(s *ChatService) {
		s.client = client
	}
}

// ChatWithModel overrides the model name
func ChatWithModel(model string) ChatServiceOption {
	return func(s *ChatService) {
		s.model = model
	}
}

// NewChatService creates a new chat service
func NewChatService(opts ...ChatServiceOption) *ChatService {
	s := &ChatService{
		model: "gemini-1.5-pro",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers a question grounded in the supplied regulation context.
func (s *ChatService) Ask(ctx context.Context, query, regulationContext string) (string, error) {
	if s.client == nil {
		return "", errors.New("chat service has no Gemini client configured")
	}

	prompt := fmt.Sprintf(`Based on the following regulation context, answer the user's question:

Context:
%s

Question:
%s

Please provide a clear and concise answer focused on the regulation details.`,
		regulationContext,
		query,
	)

	model := s.client.GenerativeModel(s.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate chat reply: %w", err)
	}

	var reply strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				reply.WriteString(string(text))
			}
		}
	}

	if reply.Len() == 0 {
		return "", ErrEmptyReply
	}
	return reply.String(), nil
}
