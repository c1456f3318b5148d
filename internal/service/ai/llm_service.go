package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/config"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
)

var (
	ErrModelUnavailable = errors.New("language model not configured")
	ErrEmptyReply       = errors.New("language model returned an empty reply")
)

// Sender is the language-model collaborator used by a conversation.
type Sender interface {
	Send(ctx context.Context, prompt string, history []chat.Message) (string, error)
}

// Service sends counselling turns through an eino chain: system prompt,
// recent history, then the augmented user prompt.
type Service struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	historyLimit int
	cfg          config.AIConfig
}

// NewService compiles the chain around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chain:        runnable,
		historyLimit: cfg.HistoryLimit,
		cfg:          cfg,
	}, nil
}

// NewFromConfig builds the Ark chat model from cfg and wraps it in a Service.
func NewFromConfig(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewService(ctx, chatModel, cfg)
}

// Send runs one model call. history should exclude the message carried in prompt.
func (s *Service) Send(ctx context.Context, prompt string, history []chat.Message) (string, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	response, err := s.chain.Invoke(ctx, map[string]any{
		"system":  SystemPrompt,
		"history": s.buildHistoryMessages(history),
		"query":   prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		return "", ErrEmptyReply
	}

	log.Printf("[ai] generated reply, history=%d, length=%d", len(history), len(text))
	return text, nil
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 || s.historyLimit <= 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > s.historyLimit {
		startIdx = len(messages) - s.historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		if msg.Synthetic() {
			continue
		}
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.RoleModel:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}

	return history
}

// Unavailable is the Sender used when no model is configured.
type Unavailable struct{}

// Send always fails with ErrModelUnavailable.
func (Unavailable) Send(context.Context, string, []chat.Message) (string, error) {
	return "", ErrModelUnavailable
}
