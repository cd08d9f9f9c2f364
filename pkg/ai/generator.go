package ai

import "context"

// TextGenerator sends one prompt to an inference backend and returns the
// generated text. The model identifier is opaque to callers.
type TextGenerator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}
