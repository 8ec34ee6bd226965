package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/haasonsaas/ragsweep/internal/retry"
)

type fakeInvoker struct {
	inputs []*bedrockruntime.InvokeModelInput
	body   []byte
	err    error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := Config{}.withDefaults()
	if err != nil {
		t.Fatalf("withDefaults error: %v", err)
	}
	if cfg.Region != "us-east-1" || cfg.Model != "amazon.titan-embed-text-v2:0" || cfg.Dimensions != 1024 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if _, err := (Config{Dimensions: 300}).withDefaults(); err == nil {
		t.Error("expected error for unsupported dimensions")
	}
}

func TestTitanRequestBody(t *testing.T) {
	body, err := titanRequestBody("hello", Config{Dimensions: 512, Normalize: true})
	if err != nil {
		t.Fatalf("titanRequestBody error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["inputText"] != "hello" || decoded["dimensions"] != float64(512) || decoded["normalize"] != true {
		t.Errorf("body = %s", body)
	}
}

func TestParseTitanResponse(t *testing.T) {
	vec, err := parseTitanResponse([]byte(`{"embedding":[0.5,0.25],"inputTextTokenCount":2}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("vec = %v", vec)
	}
	if _, err := parseTitanResponse([]byte(`{"embedding":[]}`)); err == nil {
		t.Error("expected error for empty embedding")
	}
	if _, err := parseTitanResponse([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestProviderEmbedBatch(t *testing.T) {
	fake := &fakeInvoker{body: []byte(`{"embedding":[1,0]}`)}
	p := &Provider{client: fake, config: Config{Model: "m", Dimensions: 256}}

	vectors, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch error: %v", err)
	}
	if len(vectors) != 3 || len(fake.inputs) != 3 {
		t.Fatalf("vectors=%d invocations=%d", len(vectors), len(fake.inputs))
	}
	if *fake.inputs[0].ModelId != "m" {
		t.Errorf("ModelId = %q", *fake.inputs[0].ModelId)
	}
}

func TestClassify(t *testing.T) {
	validation := &smithy.GenericAPIError{Code: "ValidationException", Message: "bad"}
	throttled := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}

	fake := &fakeInvoker{err: validation}
	p := &Provider{client: fake, config: Config{Model: "m", Dimensions: 256}}
	_, err := p.Embed(context.Background(), "x")
	if !retry.IsPermanent(err) {
		t.Errorf("validation error should be permanent: %v", err)
	}

	fake.err = throttled
	_, err = p.Embed(context.Background(), "x")
	if err == nil || retry.IsPermanent(err) {
		t.Errorf("throttling error should be retryable: %v", err)
	}

	plain := errors.New("network down")
	if retry.IsPermanent(classify(plain)) {
		t.Error("plain errors should stay retryable")
	}
}
