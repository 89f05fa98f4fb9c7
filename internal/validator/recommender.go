package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Recommender produces a suggested score for a semi-automated criterion.
type Recommender interface {
	Recommend(ctx context.Context, c models.Criterion, vctx models.ValidationContext) (*Recommendation, error)
}

// RecommenderConfig contains configuration for the Anthropic-backed recommender.
type RecommenderConfig struct {
	// Model is the Claude model to use. Defaults to Sonnet 4.
	Model string
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// UseAWSBedrock routes requests through AWS Bedrock instead of the direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// AnthropicRecommender asks a Claude model to pre-score review criteria.
type AnthropicRecommender struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicRecommender creates a recommender from cfg.
func NewAnthropicRecommender(ctx context.Context, cfg RecommenderConfig) (*AnthropicRecommender, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseAWSBedrock {
		model = bedrockModel(model)
	}

	return &AnthropicRecommender{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// bedrockModel converts standard model names to Bedrock inference profile IDs.
func bedrockModel(model anthropic.Model) anthropic.Model {
	profiles := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
	}
	if p, ok := profiles[model]; ok {
		return anthropic.Model(p)
	}
	return model
}

// Recommend asks the model for a 0-100 score and a short rationale.
func (r *AnthropicRecommender) Recommend(ctx context.Context, c models.Criterion, vctx models.ValidationContext) (*Recommendation, error) {
	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(recommendPrompt(c, vctx))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: recommendation request: %v", models.ErrToolUnavailable, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	rec, err := ParseRecommendation(text.String())
	if err != nil {
		return nil, err
	}
	rec.Source = string(r.model)
	return rec, nil
}

func recommendPrompt(c models.Criterion, vctx models.ValidationContext) string {
	return fmt.Sprintf(`You are pre-screening a quality criterion before a human reviewer confirms it.

## Change
Type: %s
Title: %s
Security changes: %t
UI changes: %t
API changes: %t
Database changes: %t
Technologies: %s

## Criterion
ID: %s
Review checklist: %s
Description: %s
Passing threshold: %d

Respond with ONLY a JSON object:
{"score": <0-100>, "rationale": "<one or two sentences>"}`,
		vctx.ChangeType, vctx.Title,
		vctx.IncludesSecurityChanges, vctx.IncludesUIChanges, vctx.IncludesAPIChanges, vctx.IncludesDatabaseChanges,
		strings.Join(vctx.Technologies, ", "),
		c.ID, c.ValidationMethod, c.Description, c.PassingThreshold)
}

// ParseRecommendation extracts the JSON object from a model response.
func ParseRecommendation(text string) (*Recommendation, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in recommendation", models.ErrMalformedResult)
	}

	var out struct {
		Score     *float64 `json:"score"`
		Rationale string   `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: recommendation JSON: %v", models.ErrMalformedResult, err)
	}
	if out.Score == nil {
		return nil, fmt.Errorf("%w: recommendation has no score", models.ErrMalformedResult)
	}
	return &Recommendation{Score: *out.Score, Rationale: out.Rationale}, nil
}
