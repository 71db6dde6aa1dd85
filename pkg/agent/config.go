package agent

// Config tunes one reasoning loop.
type Config struct {
	// MaxIterations bounds the number of think/act cycles per run.
	MaxIterations int

	// Temperature is passed through to the provider on every completion.
	Temperature float64

	// EnableReflection allows one mid-run review pass once half the
	// iteration budget is spent.
	EnableReflection bool

	// EnablePlanning asks the provider for a step plan before the first
	// iteration and folds it into the prompt. Best effort: planning
	// failures are ignored.
	EnablePlanning bool

	// Preamble is an extra instruction line biasing tool choice, set by
	// the builder per mode.
	Preamble string
}

// DefaultConfig returns the standard loop configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations:    10,
		Temperature:      0.7,
		EnableReflection: true,
		EnablePlanning:   true,
	}
}
