// Package persona holds the fixed generation bundle that shapes every relay
// call: model, system instruction, sampling temperature, output bound and the
// reply used when the backend produces no text.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed persona.yaml
var defaultBundle []byte

// DefaultFallback is used when a bundle does not define its own fallback.
const DefaultFallback = "I'm speechless. Literally. My response generator took a coffee break and forgot to come back. Try again?"

var (
	ErrMissingModel        = errors.New("persona: model is required")
	ErrMissingSystemPrompt = errors.New("persona: system_prompt is required")
	ErrInvalidTemperature  = errors.New("persona: temperature must be between 0 and 2")
	ErrInvalidMaxTokens    = errors.New("persona: max_tokens must be greater than 0")
)

// Params is the generation parameter bundle. It is loaded once at startup and
// handed to consumers by value.
type Params struct {
	Model        string  `yaml:"model"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	Fallback     string  `yaml:"fallback"`
}

// Default returns the embedded bundle.
func Default() (Params, error) {
	return Parse(defaultBundle)
}

// Load reads a bundle from path. An empty path yields the embedded bundle.
func Load(path string) (Params, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read persona file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML bundle.
func Parse(data []byte) (Params, error) {
	var p Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("parse persona bundle: %w", err)
	}
	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	if strings.TrimSpace(p.Fallback) == "" {
		p.Fallback = DefaultFallback
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks that the bundle can drive a completion call.
func (p Params) Validate() error {
	if strings.TrimSpace(p.Model) == "" {
		return ErrMissingModel
	}
	if p.SystemPrompt == "" {
		return ErrMissingSystemPrompt
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return ErrInvalidTemperature
	}
	if p.MaxTokens <= 0 {
		return ErrInvalidMaxTokens
	}
	return nil
}
