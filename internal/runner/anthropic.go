package runner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	cfg "github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/pkg/models"
)

// Anthropic runs agents against the Anthropic API, optionally through
// AWS Bedrock. Each agent's spec shapes the system prompt so the same
// backend behaves differently per agent type.
type Anthropic struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropic creates the Anthropic-backed runner from config.
func NewAnthropic(c cfg.AnthropicConfig) (*Anthropic, error) {
	var opts []option.RequestOption

	if c.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*awsconfig.LoadOptions) error
		if c.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(c.AWSRegion))
		}
		if c.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(c.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := c.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := anthropic.Model(c.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Run sends the task to the API with an agent-specific system prompt and
// returns the concatenated text blocks of the reply.
func (a *Anthropic) Run(ctx context.Context, spec models.AgentSpec, assignment models.TaskAssignment) (Response, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(spec)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(assignment.Task)),
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("agent %s api call: %w", spec.ID, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(variant.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Response{}, fmt.Errorf("agent %s: empty response from API", spec.ID)
	}

	return Response{
		Text:       text,
		Confidence: confidence(spec.Type, text),
		Metadata: map[string]any{
			"agent_id":      spec.ID,
			"model":         string(a.model),
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
		},
	}, nil
}

// systemPrompt builds the per-agent system prompt from its spec.
func systemPrompt(spec models.AgentSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a %s agent.", spec.Name, spec.Type)
	if spec.Description != "" {
		fmt.Fprintf(&sb, " %s.", strings.TrimSuffix(spec.Description, "."))
	}
	if len(spec.Specializations) > 0 {
		fmt.Fprintf(&sb, " Your specializations: %s.", strings.Join(spec.Specializations, ", "))
	}
	sb.WriteString(" Answer the user's task directly and concisely from your specialty's perspective.")
	return sb.String()
}

// ForConfig picks the runner backend for the given config: simulated when
// requested or when no credentials are configured, Anthropic otherwise.
func ForConfig(c cfg.RunnerConfig) (Runner, error) {
	if c.Simulate {
		return NewSimulated(), nil
	}
	if c.Anthropic.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" && !c.Anthropic.UseAWSBedrock {
		return NewSimulated(), nil
	}
	return NewAnthropic(c.Anthropic)
}
