package llm

import (
	"context"
)

// Client generates a completion for a single user prompt
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts a function to Client
type ClientFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f
func (f ClientFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
