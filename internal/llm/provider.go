// Package llm is a thin provider abstraction over text-generation APIs that
// return schema-constrained JSON.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates a single structured completion.
type Provider interface {
	// Generate sends req and returns the model output. When req.Schema is set
	// the returned Content has already been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID names the configured model.
	ModelID() string
}

// Request is one single-turn generation call.
type Request struct {
	System      string
	User        string
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// Schema is a named JSON Schema the response must satisfy.
type Schema struct {
	// Name is kebab-case and unique per shape; compiled schemas are cached by it.
	Name        string
	Description string
	Definition  map[string]any
}

// Response is the provider output.
type Response struct {
	Content json.RawMessage
	Model   string
	Usage   Usage
}

// Usage reports token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
