// SPDX-License-Identifier: Apache-2.0

package models

import (
	"encoding/json"
	"fmt"
)

// FieldKind classifies a payload field. Password fields are the targets of
// credential rotation.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldPassword FieldKind = "password"
	FieldSecret   FieldKind = "secret"
	FieldURL      FieldKind = "url"
	FieldEmail    FieldKind = "email"
	FieldNote     FieldKind = "note"
)

// PayloadField is one named value inside an item payload.
type PayloadField struct {
	Kind  FieldKind `json:"kind"`
	Value string    `json:"value"`
}

// ItemPayload is the structured plaintext form of an item. It is what shared
// server vaults carry on the wire and what every vault stores once sealed
// inside the envelope.
type ItemPayload struct {
	V      int32                   `json:"v"`
	TypeID string                  `json:"typeId"`
	Fields map[string]PayloadField `json:"fields"`
}

// payloadVersion is the only structured-payload version in circulation.
const payloadVersion = 1

// NewItemPayload builds a version-1 payload for the given type.
func NewItemPayload(typeID string) *ItemPayload {
	return &ItemPayload{
		V:      payloadVersion,
		TypeID: typeID,
		Fields: map[string]PayloadField{},
	}
}

// ParseItemPayload decodes plaintext payload bytes. Unknown versions and
// malformed documents fail; fields are never silently dropped.
func ParseItemPayload(data []byte) (*ItemPayload, error) {
	var p ItemPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	if p.V != payloadVersion {
		return nil, fmt.Errorf("invalid payload: unsupported version %d", p.V)
	}
	if p.Fields == nil {
		p.Fields = map[string]PayloadField{}
	}
	return &p, nil
}

// Bytes returns the canonical JSON encoding of the payload.
func (p *ItemPayload) Bytes() ([]byte, error) {
	return json.Marshal(p)
}

// HasPasswordField reports whether any field is a rotation target.
func (p *ItemPayload) HasPasswordField() bool {
	for _, field := range p.Fields {
		if field.Kind == FieldPassword {
			return true
		}
	}
	return false
}

// SetPassword replaces the value of every password-kind field. Rotation
// commit applies the candidate through this.
func (p *ItemPayload) SetPassword(value string) {
	for name, field := range p.Fields {
		if field.Kind == FieldPassword {
			field.Value = value
			p.Fields[name] = field
		}
	}
}

// ValidateForType checks the payload against the item's declared type_id.
// The rules are deliberately light: types constrain which fields must be
// present, not which extra fields may appear.
func (p *ItemPayload) ValidateForType(typeID string) error {
	if p.TypeID != "" && p.TypeID != typeID {
		return fmt.Errorf("invalid payload: typeId %q does not match item type %q", p.TypeID, typeID)
	}
	switch typeID {
	case "login":
		if !p.HasPasswordField() {
			return fmt.Errorf("invalid payload: login requires a password field")
		}
	case "note":
		if _, ok := p.Fields["note"]; !ok {
			return fmt.Errorf("invalid payload: note requires a note field")
		}
	case "card", "kv", "key":
		// free-form field sets
	default:
		// unknown type tags are allowed; the tag is an organisational hint
	}
	return nil
}
