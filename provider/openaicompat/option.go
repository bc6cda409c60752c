package openaicompat

// Option configures an OpenAI-compatible chat request.
type Option func(*chatRequest)

// WithTemperature sets the sampling temperature (0.0–2.0).
func WithTemperature(t float64) Option {
	return func(r *chatRequest) { r.Temperature = &t }
}

// WithTopP sets nucleus sampling top-p (0.0–1.0).
func WithTopP(p float64) Option {
	return func(r *chatRequest) { r.TopP = &p }
}

// WithMaxTokens sets the maximum number of output tokens.
func WithMaxTokens(n int) Option {
	return func(r *chatRequest) { r.MaxTokens = n }
}

// WithStop sets one or more stop sequences.
func WithStop(s ...string) Option {
	return func(r *chatRequest) { r.Stop = s }
}

// WithSeed sets a deterministic seed for reproducible outputs.
func WithSeed(s int) Option {
	return func(r *chatRequest) { r.Seed = &s }
}

// WithToolChoice controls how the model selects tools. Accepts "none",
// "auto", "required", or a specific tool object.
func WithToolChoice(choice any) Option {
	return func(r *chatRequest) { r.ToolChoice = choice }
}
