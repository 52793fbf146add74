package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/affirmation-studio/backend/internal/model/affirmation"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
)

type fakeChatModel struct {
	reply string
	err   error
	calls int
	last  []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
	f.last = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func newTestService(t *testing.T, fake *fakeChatModel) *Service {
	t.Helper()
	svc, err := NewServiceWithModel(context.Background(), fake, 5)
	require.NoError(t, err)
	return svc
}

func TestGenerateReturnsLinesInOrder(t *testing.T) {
	fake := &fakeChatModel{reply: "I speak up in meetings.\n\n  I trust my judgement.  \nI deserve my seat at the table.\nI learn from feedback.\n\nI lead with calm confidence.\n"}
	svc := newTestService(t, fake)

	lines, err := svc.Generate(context.Background(), "be more confident at work", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"I speak up in meetings.",
		"I trust my judgement.",
		"I deserve my seat at the table.",
		"I learn from feedback.",
		"I lead with calm confidence.",
	}, lines)

	require.Len(t, fake.last, 2)
	assert.Equal(t, schema.System, fake.last[0].Role)
	assert.Equal(t, generateSystemPrompt, fake.last[0].Content)
	assert.Equal(t, "Create 5 positive affirmations for this goal: be more confident at work", fake.last[1].Content)
}

func TestGenerateKeepsBracesInGoal(t *testing.T) {
	fake := &fakeChatModel{reply: "ok"}
	svc := newTestService(t, fake)

	_, err := svc.Generate(context.Background(), "ship {the} release", 3)
	require.NoError(t, err)
	assert.Contains(t, fake.last[1].Content, "ship {the} release")
	assert.Contains(t, fake.last[1].Content, "Create 3 ")
}

func TestGenerateEmptyGoalSkipsProvider(t *testing.T) {
	fake := &fakeChatModel{reply: "never"}
	svc := newTestService(t, fake)

	for _, goal := range []string{"", "   ", "\n\t"} {
		_, err := svc.Generate(context.Background(), goal, 5)
		assert.True(t, apperr.IsKind(err, apperr.InvalidInput), "goal %q", goal)
	}
	assert.Zero(t, fake.calls)
}

func TestGenerateRejectsTooManyAffirmations(t *testing.T) {
	fake := &fakeChatModel{reply: "x"}
	svc := newTestService(t, fake)

	_, err := svc.Generate(context.Background(), "goal", 99)
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	assert.Zero(t, fake.calls)
}

func TestGenerateUpstreamFailures(t *testing.T) {
	cases := map[string]*fakeChatModel{
		"provider error": {err: errors.New("429 too many requests")},
		"empty content":  {reply: "   "},
		"blank lines":    {reply: "\n\n \n"},
	}
	for name, fake := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, fake)
			_, err := svc.Generate(context.Background(), "goal", 5)
			assert.True(t, apperr.IsKind(err, apperr.Upstream))
		})
	}
}

func TestValidateOK(t *testing.T) {
	fake := &fakeChatModel{reply: `{"status":"ok","message":"Looks great."}`}
	svc := newTestService(t, fake)

	result, err := svc.Validate(context.Background(), []string{"I am calm", " ", "I am strong"})
	require.NoError(t, err)
	assert.Equal(t, affirmation.StatusOK, result.Status)
	assert.Equal(t, "Looks great.", result.Message)
	assert.Empty(t, result.Suggestions)
	assert.Equal(t, "Review these affirmations:\nI am calm\nI am strong\n", fake.last[1].Content)
}

func TestValidateSuggestionsInsideCodeFence(t *testing.T) {
	fake := &fakeChatModel{reply: "Here you go:\n```json\n" +
		`{"status":"suggestions","message":"Two tweaks.","suggestions":[{"original":"I will not fail","suggested":"I succeed","reason":"present tense"}]}` +
		"\n```"}
	svc := newTestService(t, fake)

	result, err := svc.Validate(context.Background(), []string{"I will not fail"})
	require.NoError(t, err)
	assert.Equal(t, affirmation.StatusSuggestions, result.Status)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, affirmation.Suggestion{Original: "I will not fail", Suggested: "I succeed", Reason: "present tense"}, result.Suggestions[0])
}

func TestValidateRejected(t *testing.T) {
	fake := &fakeChatModel{reply: `{"status":"rejected","message":"These are not affirmations.","suggestions":null}`}
	svc := newTestService(t, fake)

	result, err := svc.Validate(context.Background(), []string{"buy milk"})
	require.NoError(t, err)
	assert.Equal(t, affirmation.StatusRejected, result.Status)
}

func TestValidateMalformedResponses(t *testing.T) {
	cases := map[string]string{
		"not json":        "Sure, these look fine!",
		"broken json":     `{"status": "ok", "message": }`,
		"unknown status":  `{"status":"maybe","message":"hm"}`,
		"missing message": `{"status":"ok"}`,
		"bad suggestion":  `{"status":"suggestions","message":"m","suggestions":[{"original":"a"}]}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, &fakeChatModel{reply: reply})
			_, err := svc.Validate(context.Background(), []string{"I am calm"})
			assert.True(t, apperr.IsKind(err, apperr.Upstream), "got %v", err)
		})
	}
}

func TestValidateEmptyListSkipsProvider(t *testing.T) {
	fake := &fakeChatModel{reply: `{"status":"ok","message":"m"}`}
	svc := newTestService(t, fake)

	_, err := svc.Validate(context.Background(), nil)
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	_, err = svc.Validate(context.Background(), []string{"", "  "})
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	assert.Zero(t, fake.calls)
}

func TestValidateProviderError(t *testing.T) {
	svc := newTestService(t, &fakeChatModel{err: errors.New("connection reset")})
	_, err := svc.Validate(context.Background(), []string{"I am calm"})
	assert.True(t, apperr.IsKind(err, apperr.Upstream))
}

func TestNewServiceWithModelRequiresModel(t *testing.T) {
	_, err := NewServiceWithModel(context.Background(), nil, 5)
	assert.True(t, apperr.IsKind(err, apperr.Configuration))
}
