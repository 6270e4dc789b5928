package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const (
	defaultBedrockModel   = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	defaultBedrockTimeout = 60 * time.Second
)

// ConverseAPI is the subset of the Bedrock runtime client used here
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider invokes models hosted on AWS Bedrock via the Converse API
type BedrockProvider struct {
	client ConverseAPI
	config Config
}

// NewBedrockProvider loads AWS credentials for the configured region and
// shared-config profile
func NewBedrockProvider(ctx context.Context, config Config) (*BedrockProvider, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(config.Profile))
	}
	opts = append(opts, awsconfig.WithHTTPClient(newHTTPClient(config.timeout(defaultBedrockTimeout))))

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return NewBedrockProviderWithClient(bedrockruntime.NewFromConfig(awsCfg), config), nil
}

// NewBedrockProviderWithClient wraps an existing Converse client
func NewBedrockProviderWithClient(client ConverseAPI, config Config) *BedrockProvider {
	return &BedrockProvider{client: client, config: config}
}

func (p *BedrockProvider) Name() string {
	return "bedrock"
}

// IsAvailable sends a tiny prompt to the configured model
func (p *BedrockProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.Complete(ctx, CompletionRequest{Prompt: "Hi", MaxTokens: 5})
	return err == nil
}

func (p *BedrockProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model, maxTokens := p.config.resolve(req, defaultBedrockModel)

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(maxTokens)),
			Temperature: aws.Float32(float32(req.Temperature)),
		},
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("bedrock converse: unexpected output type %T", out.Output)
	}

	var text strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no text content in bedrock response")
	}

	var in, outTokens int
	if out.Usage != nil {
		in = int(aws.ToInt32(out.Usage.InputTokens))
		outTokens = int(aws.ToInt32(out.Usage.OutputTokens))
	}

	return &Completion{
		Text:  strings.TrimSpace(text.String()),
		Model: model,
		Usage: usage(in, outTokens),
	}, nil
}
