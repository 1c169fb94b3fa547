package a2a

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProtocolVersion is the A2A protocol revision this server speaks.
const ProtocolVersion = "0.3.0"

// AgentProvider identifies the organization behind an agent.
type AgentProvider struct {
	Organization string `json:"organization" yaml:"organization"`
	URL          string `json:"url,omitempty" yaml:"url,omitempty"`
}

// AgentCapabilities advertises optional protocol features.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming" yaml:"streaming"`
	PushNotifications      bool `json:"pushNotifications" yaml:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory" yaml:"stateTransitionHistory"`
}

// AgentSkill describes one capability of the agent in human terms.
type AgentSkill struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty" yaml:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty" yaml:"outputModes,omitempty"`
}

// AgentCard is the agent's public metadata: identity, transport entry
// point, capabilities, and skills. Cards are authored as YAML and served
// as JSON.
type AgentCard struct {
	ProtocolVersion                   string            `json:"protocolVersion" yaml:"protocolVersion"`
	Name                              string            `json:"name" yaml:"name"`
	Description                       string            `json:"description,omitempty" yaml:"description,omitempty"`
	URL                               string            `json:"url" yaml:"url"`
	Version                           string            `json:"version" yaml:"version"`
	Provider                          *AgentProvider    `json:"provider,omitempty" yaml:"provider,omitempty"`
	DocumentationURL                  string            `json:"documentationUrl,omitempty" yaml:"documentationUrl,omitempty"`
	Capabilities                      AgentCapabilities `json:"capabilities" yaml:"capabilities"`
	DefaultInputModes                 []string          `json:"defaultInputModes,omitempty" yaml:"defaultInputModes,omitempty"`
	DefaultOutputModes                []string          `json:"defaultOutputModes,omitempty" yaml:"defaultOutputModes,omitempty"`
	Skills                            []AgentSkill      `json:"skills" yaml:"skills"`
	SupportsAuthenticatedExtendedCard bool              `json:"supportsAuthenticatedExtendedCard,omitempty" yaml:"supportsAuthenticatedExtendedCard,omitempty"`
}

// LoadAgentCard reads an agent card from a YAML file. A missing
// protocolVersion is filled with the version this server speaks.
func LoadAgentCard(path string) (*AgentCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent card: %w", err)
	}

	var card AgentCard
	if err := yaml.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("failed to parse agent card %s: %w", path, err)
	}
	if card.Name == "" {
		return nil, fmt.Errorf("agent card %s: name is required", path)
	}
	if card.URL == "" {
		return nil, fmt.Errorf("agent card %s: url is required", path)
	}
	if card.ProtocolVersion == "" {
		card.ProtocolVersion = ProtocolVersion
	}
	return &card, nil
}
