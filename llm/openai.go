package llm

import (
	"context"
	"errors"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"shorts-factory/keys"
	"shorts-factory/retry"
)

// OpenAIBackend generates text through the OpenAI chat completion API,
// rotating across the key pool on every attempt.
type OpenAIBackend struct {
	rotator *keys.Rotator
	policy  retry.Policy
	model   string
	temp    float64
	maxTok  int

	// newClient is swapped out in tests.
	newClient func(key string) *openai.Client
}

func NewOpenAIBackend(rotator *keys.Rotator, policy retry.Policy, model string, temperature float64, maxTokens int) *OpenAIBackend {
	policy.Classify = classifyOpenAI
	return &OpenAIBackend{
		rotator:   rotator,
		policy:    policy,
		model:     model,
		temp:      temperature,
		maxTok:    maxTokens,
		newClient: openai.NewClient,
	}
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	var cred *keys.Credential

	err := retry.Run(ctx, b.policy, func(ctx context.Context) error {
		c, err := b.rotator.Acquire("openai")
		if err != nil {
			return err
		}
		cred = c

		client := b.newClient(c.Secret)
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       b.model,
			Temperature: float32(b.temp),
			MaxTokens:   b.maxTok,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("openai returned no choices")
		}

		b.rotator.Report(c, keys.Ok)
		out = resp.Choices[0].Message.Content
		return nil
	}, func(err error) {
		b.rotator.Report(cred, outcomeForStatus(openAIStatus(err)))
	})

	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	log.Printf("[llm] openai produced %d bytes", len(out))
	return out, nil
}

func classifyOpenAI(err error) retry.Class {
	if errors.Is(err, keys.ErrNoKeyAvailable) {
		return retry.Fatal
	}
	return classifyStatus(&statusError{Status: openAIStatus(err)})
}

// openAIStatus extracts the HTTP status from a go-openai error chain.
// 0 means transport-level failure.
func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
