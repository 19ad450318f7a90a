package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptOverrides maps stage names to replacement instructions.
//
//	flights: |
//	  You are a flight booking agent for {trip_details} ...
type PromptOverrides map[string]string

// LoadPrompts reads a prompt override file. An empty path yields no overrides.
func LoadPrompts(path string) (PromptOverrides, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompts: %w", err)
	}
	return ParsePrompts(data)
}

// ParsePrompts decodes a YAML mapping of stage name to instruction.
func ParsePrompts(data []byte) (PromptOverrides, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out PromptOverrides
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return PromptOverrides{}, nil
		}
		return nil, fmt.Errorf("parsing prompts: %w", err)
	}
	return out, nil
}
