package a2a

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Part kind discriminators used on the wire.
const (
	PartKindText = "text"
	PartKindFile = "file"
	PartKindData = "data"
)

// Part is one piece of message or artifact content. Concrete types are
// TextPart, FilePart, and DataPart; the wire form carries a "kind" field.
type Part interface {
	PartKind() string
}

// TextPart carries plain text.
type TextPart struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (p *TextPart) PartKind() string { return PartKindText }

// MarshalJSON adds the kind discriminator.
func (p *TextPart) MarshalJSON() ([]byte, error) {
	type alias TextPart
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{PartKindText, (*alias)(p)})
}

// FileContent is a binary attachment, inline (base64 bytes) or by reference.
type FileContent struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// FilePart carries a binary attachment.
type FilePart struct {
	File     FileContent            `json:"file"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (p *FilePart) PartKind() string { return PartKindFile }

// MarshalJSON adds the kind discriminator.
func (p *FilePart) MarshalJSON() ([]byte, error) {
	type alias FilePart
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{PartKindFile, (*alias)(p)})
}

// DataPart carries structured data.
type DataPart struct {
	Data     map[string]interface{} `json:"data"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (p *DataPart) PartKind() string { return PartKindData }

// MarshalJSON adds the kind discriminator.
func (p *DataPart) MarshalJSON() ([]byte, error) {
	type alias DataPart
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{PartKindData, (*alias)(p)})
}

// NewTextPart builds a text part.
func NewTextPart(text string) *TextPart {
	return &TextPart{Text: text}
}

// UnmarshalPart decodes one part by its kind discriminator.
func UnmarshalPart(data []byte) (Part, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode part: %w", err)
	}
	switch probe.Kind {
	case PartKindText:
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case PartKindFile:
		var p FilePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case PartKindData:
		var p DataPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown part kind %q", probe.Kind)
	}
}

func unmarshalParts(raw []json.RawMessage) ([]Part, error) {
	if raw == nil {
		return nil, nil
	}
	parts := make([]Part, 0, len(raw))
	for _, r := range raw {
		p, err := UnmarshalPart(r)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// Message is one conversation turn. Immutable once stored.
type Message struct {
	MessageID string                 `json:"messageId"`
	Role      Role                   `json:"role"`
	Parts     []Part                 `json:"parts"`
	TaskID    string                 `json:"taskId,omitempty"`
	ContextID string                 `json:"contextId,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// MarshalJSON adds the kind discriminator.
func (m *Message) MarshalJSON() ([]byte, error) {
	type alias Message
	return json.Marshal(struct {
		Kind string `json:"kind"`
		*alias
	}{KindMessage, (*alias)(m)})
}

// UnmarshalJSON decodes the polymorphic parts list.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		*alias
		Parts []json.RawMessage `json:"parts"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parts, err := unmarshalParts(aux.Parts)
	if err != nil {
		return err
	}
	m.Parts = parts
	return nil
}

// UnmarshalJSON decodes the polymorphic parts list.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	type alias Artifact
	aux := struct {
		*alias
		Parts []json.RawMessage `json:"parts"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parts, err := unmarshalParts(aux.Parts)
	if err != nil {
		return err
	}
	a.Parts = parts
	return nil
}

// Text concatenates the text of all text parts. Convenience for executors
// and tests.
func (m *Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(*TextPart); ok {
			out += tp.Text
		}
	}
	return out
}
