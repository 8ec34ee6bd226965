// Package bedrock provides an embedding provider using Amazon Titan text
// embedding models through the Bedrock runtime.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/haasonsaas/ragsweep/internal/rag/embeddings"
	"github.com/haasonsaas/ragsweep/internal/retry"
)

// Config contains configuration for the Bedrock provider.
type Config struct {
	Region          string `yaml:"region" json:"region"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	SessionToken    string `yaml:"session_token" json:"session_token"`
	Model           string `yaml:"model" json:"model"`
	// Dimensions is 256, 512 or 1024 for Titan v2.
	Dimensions int  `yaml:"dimensions" json:"dimensions"`
	Normalize  bool `yaml:"normalize" json:"normalize"`
}

type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Provider implements embeddings.Provider using Bedrock Titan models.
type Provider struct {
	client invoker
	config Config
}

var _ embeddings.Provider = (*Provider)(nil)

// New creates a Bedrock embedding provider. Credentials fall back to the
// default AWS chain when no static keys are configured.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return &Provider{client: bedrockruntime.NewFromConfig(awsCfg), config: cfg}, nil
}

func (c Config) withDefaults() (Config, error) {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.Model == "" {
		c.Model = "amazon.titan-embed-text-v2:0"
	}
	switch c.Dimensions {
	case 0:
		c.Dimensions = 1024
	case 256, 512, 1024:
	default:
		return c, fmt.Errorf("bedrock: dimensions must be 256, 512 or 1024, got %d", c.Dimensions)
	}
	return c, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return "bedrock" }

// Dimension returns the embedding dimension.
func (p *Provider) Dimension() int { return p.config.Dimensions }

// MaxBatchSize returns the maximum number of texts per batch.
// Titan embeds one input per invocation.
func (p *Provider) MaxBatchSize() int { return 1 }

// Embed generates an embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := titanRequestBody(text, p.config)
	if err != nil {
		return nil, err
	}
	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.config.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("bedrock: invoke model: %w", err))
	}
	return parseTitanResponse(out.Body)
}

// EmbedBatch generates embeddings for multiple texts.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

func titanRequestBody(text string, cfg Config) ([]byte, error) {
	body, err := json.Marshal(titanRequest{
		InputText:  text,
		Dimensions: cfg.Dimensions,
		Normalize:  cfg.Normalize,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal request: %w", err)
	}
	return body, nil
}

func parseTitanResponse(body []byte) ([]float32, error) {
	var resp titanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("bedrock: decode response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("bedrock: empty embedding in response")
	}
	return resp.Embedding, nil
}

// classify marks request errors the service will never accept as permanent.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "ValidationException", "AccessDeniedException", "ResourceNotFoundException":
		return retry.Permanent(err)
	}
	return err
}
