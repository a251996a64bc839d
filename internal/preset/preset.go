// Package preset decodes the embedded configuration blob shipped with the
// client: the model registry, the agent prompt templates, and the
// base64-obscured endpoint and auth values.
package preset

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "embed"
)

//go:embed preset.json
var presetBlob []byte

var (
	// ErrPresetInvalid is returned when the embedded blob cannot be decoded.
	ErrPresetInvalid = errors.New("preset blob invalid")
	// ErrUnknownModel is returned for model names missing from the registry.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnknownAgent is returned for agent names missing from the preset.
	ErrUnknownAgent = errors.New("unknown agent")
)

// AgentCustom is the agent whose template substitutes a caller instruction.
const AgentCustom = "custom"

// instructionPlaceholder is the substitution marker inside the custom
// agent template.
const instructionPlaceholder = "{system_prompt}"

// rawPreset mirrors the embedded JSON document.
type rawPreset struct {
	// Model maps friendly model names to provider identifiers.
	Model map[string]string `json:"model"`
	// Agent maps agent names to prompt templates.
	Agent map[string]string `json:"agent"`
	// Locale carries base64-encoded [auth value, chat URL, upload URL].
	Locale []string `json:"locale"`
}

// Preset is the decoded configuration. It is immutable after Load.
type Preset struct {
	// models maps friendly model names to provider identifiers.
	models map[string]string
	// agents maps agent names to prompt templates.
	agents map[string]string
	// AuthValue is the decoded auth header value.
	AuthValue string
	// ChatURL is the decoded chat completion endpoint.
	ChatURL string
	// UploadURL is the decoded image upload endpoint.
	UploadURL string
}

// Load decodes and validates the embedded preset blob.
func Load() (*Preset, error) {
	var raw rawPreset
	if err := json.Unmarshal(presetBlob, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPresetInvalid, err)
	}
	if len(raw.Model) == 0 || len(raw.Agent) == 0 {
		return nil, fmt.Errorf("%w: missing model or agent tables", ErrPresetInvalid)
	}
	if len(raw.Locale) < 3 {
		return nil, fmt.Errorf("%w: locale needs 3 entries, got %d", ErrPresetInvalid, len(raw.Locale))
	}

	decoded := make([]string, 3)
	for i := 0; i < 3; i++ {
		value, err := base64.StdEncoding.DecodeString(raw.Locale[i])
		if err != nil {
			return nil, fmt.Errorf("%w: locale entry %d: %v", ErrPresetInvalid, i, err)
		}
		decoded[i] = string(value)
	}

	return &Preset{
		models:    raw.Model,
		agents:    raw.Agent,
		AuthValue: decoded[0],
		ChatURL:   decoded[1],
		UploadURL: decoded[2],
	}, nil
}

// Model resolves a friendly model name to its provider identifier.
func (p *Preset) Model(name string) (string, error) {
	model, ok := p.models[name]
	if !ok || model == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return model, nil
}

// ModelNames lists the registered friendly model names.
func (p *Preset) ModelNames() []string {
	names := make([]string, 0, len(p.models))
	for name := range p.models {
		names = append(names, name)
	}
	return names
}

// Agent renders the prompt template for an agent. The custom agent
// substitutes the instruction into its placeholder; other agents ignore it.
func (p *Preset) Agent(name string, instruction string) (string, error) {
	template, ok := p.agents[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	if name == AgentCustom && instruction != "" {
		return strings.ReplaceAll(template, instructionPlaceholder, instruction), nil
	}
	return template, nil
}

// AgentNames lists the available agent names.
func (p *Preset) AgentNames() []string {
	names := make([]string, 0, len(p.agents))
	for name := range p.agents {
		names = append(names, name)
	}
	return names
}
