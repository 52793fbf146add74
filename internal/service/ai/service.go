package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/affirmation-studio/backend/internal/config"
	"github.com/zhouzirui/affirmation-studio/backend/internal/logging"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/affirmation"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
)

// Service drafts and reviews affirmations through the language model.
type Service struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	defaultCount int
}

// NewService creates the text generation client from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.AffirmationCount)
}

// NewServiceWithModel builds the client around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, defaultCount int) (*Service, error) {
	if chatModel == nil {
		return nil, apperr.New(apperr.Configuration, "ai service", "chat model is required")
	}
	if defaultCount < 1 || defaultCount > config.MaxAffirmationCount {
		defaultCount = 5
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile affirmation chain: %w", err)
	}

	return &Service{
		chain:        runnable,
		defaultCount: defaultCount,
	}, nil
}

// DefaultCount is the number of affirmations requested when the caller passes none.
func (s *Service) DefaultCount() int {
	return s.defaultCount
}

// Generate asks the model for count affirmations targeting goal and
// returns the non-blank response lines in order.
func (s *Service) Generate(ctx context.Context, goal string, count int) ([]string, error) {
	const op = "generate affirmations"

	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, apperr.Invalid(op, "goal is required")
	}
	if count <= 0 {
		count = s.defaultCount
	}
	if count > config.MaxAffirmationCount {
		return nil, apperr.Invalid(op, fmt.Sprintf("at most %d affirmations can be generated at once", config.MaxAffirmationCount))
	}

	msg, err := s.chain.Invoke(ctx, map[string]any{
		"system": generateSystemPrompt,
		"query":  buildGenerateQuery(goal, count),
	})
	if err != nil {
		return nil, apperr.UpstreamFailure(op, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, apperr.New(apperr.Upstream, op, "response missing expected content")
	}

	lines := affirmation.SplitLines(msg.Content)
	if len(lines) == 0 {
		return nil, apperr.New(apperr.Upstream, op, "response missing expected content")
	}

	logging.FromContext(ctx).WithPrefix("ai").Info("generated affirmations", "requested", count, "received", len(lines))
	return lines, nil
}

// Validate asks the model to review user-written affirmations. The
// verdict is returned unchanged once it passes the response schema.
func (s *Service) Validate(ctx context.Context, items []string) (affirmation.ValidationResult, error) {
	const op = "validate affirmations"

	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			cleaned = append(cleaned, item)
		}
	}
	if len(cleaned) == 0 {
		return affirmation.ValidationResult{}, apperr.Invalid(op, "at least one affirmation is required")
	}

	msg, err := s.chain.Invoke(ctx, map[string]any{
		"system": validateSystemPrompt,
		"query":  buildValidateQuery(cleaned),
	})
	if err != nil {
		return affirmation.ValidationResult{}, apperr.UpstreamFailure(op, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return affirmation.ValidationResult{}, apperr.New(apperr.Upstream, op, "response missing expected content")
	}

	result, err := parseValidationResponse(msg.Content)
	if err != nil {
		return affirmation.ValidationResult{}, apperr.UpstreamFailure(op, err)
	}

	logging.FromContext(ctx).WithPrefix("ai").Info("validated affirmations",
		"items", len(cleaned), "status", result.Status, "suggestions", len(result.Suggestions))
	return result, nil
}
