package assistant

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
)

// ChatService answers free text the command registry couldn't resolve.
// Failures degrade to a canned response; they never fail the interaction.
type ChatService interface {
	Chat(ctx context.Context, turns []Turn, systemPrompt string) (string, error)
}

// OpenAIChat is the production ChatService on chat completions.
type OpenAIChat struct {
	client openai.Client
	model  string
}

// NewOpenAIChat wraps an existing client.
func NewOpenAIChat(client openai.Client, model string) *OpenAIChat {
	if model == "" {
		model = string(openai.ChatModelGPT5Nano)
	}
	return &OpenAIChat{client: client, model: model}
}

// Chat maps the turn window onto a completion request.
func (c *OpenAIChat) Chat(ctx context.Context, turns []Turn, systemPrompt string) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(systemPrompt))
	}
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(t.Text))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Text))
		default:
			msgs = append(msgs, openai.UserMessage(t.Text))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    openai.ChatModel(c.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty chat response")
	}
	return resp.Choices[0].Message.Content, nil
}

// cannedResponse is the rule-based fallback when the chat service is
// unreachable. It always echoes what was understood.
func cannedResponse(text string) string {
	return fmt.Sprintf("I'm not able to reach my language service right now. I heard: %q.", text)
}
