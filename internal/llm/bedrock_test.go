package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func textOutput(text string, in, out int32) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
			},
		},
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(in),
			OutputTokens: aws.Int32(out),
			TotalTokens:  aws.Int32(in + out),
		},
	}
}

func TestBedrockProvider_Complete_Success(t *testing.T) {
	fake := &fakeConverse{out: textOutput(`{"status":"partial"}`, 900, 150)}
	provider := NewBedrockProviderWithClient(fake, Config{Model: "anthropic.claude-3-5-haiku-20241022-v1:0", MaxTokens: 300})

	resp, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "judge", System: "strict"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if got := aws.ToString(fake.input.ModelId); got != "anthropic.claude-3-5-haiku-20241022-v1:0" {
		t.Errorf("Unexpected model id: %s", got)
	}
	if got := aws.ToInt32(fake.input.InferenceConfig.MaxTokens); got != 300 {
		t.Errorf("Expected max tokens 300, got %d", got)
	}
	if len(fake.input.System) != 1 {
		t.Errorf("Expected one system block, got %d", len(fake.input.System))
	}
	if resp.Text != `{"status":"partial"}` {
		t.Errorf("Unexpected text: %s", resp.Text)
	}
	if resp.Usage.InputTokens != 900 || resp.Usage.OutputTokens != 150 {
		t.Errorf("Unexpected usage: %+v", resp.Usage)
	}
}

func TestBedrockProvider_Complete_RequestOverridesModel(t *testing.T) {
	fake := &fakeConverse{out: textOutput("ok", 1, 1)}
	provider := NewBedrockProviderWithClient(fake, Config{Model: "configured"})

	if _, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "x", Model: "override"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got := aws.ToString(fake.input.ModelId); got != "override" {
		t.Errorf("Expected request model to win, got %s", got)
	}
}

func TestBedrockProvider_Complete_Error(t *testing.T) {
	fake := &fakeConverse{err: errors.New("AccessDeniedException: no model access")}
	provider := NewBedrockProviderWithClient(fake, Config{})

	_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, fake.err) {
		t.Errorf("Expected wrapped error, got %v", err)
	}
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected unavailable when converse fails")
	}
}

func TestBedrockProvider_Complete_NoText(t *testing.T) {
	fake := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{}},
	}}
	provider := NewBedrockProviderWithClient(fake, Config{})

	if _, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("Expected error for empty message")
	}
}
