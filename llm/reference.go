package llm

import (
	"context"
	"fmt"
	"strings"
)

const referencePrompt = `You are the reference desk of a story bible.
Answer the question below briefly and factually. Say "unknown" when you do not know.

Question: %s`

// ReferenceAnswerer answers free-text reference questions with a model.
type ReferenceAnswerer struct {
	client Client
	prompt string
}

func NewReferenceAnswerer(client Client) *ReferenceAnswerer {
	return &ReferenceAnswerer{client: client, prompt: referencePrompt}
}

func (r *ReferenceAnswerer) Answer(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("empty reference query")
	}

	answer, err := r.client.Generate(ctx, fmt.Sprintf(r.prompt, query))
	if err != nil {
		return "", fmt.Errorf("error generating reference answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
