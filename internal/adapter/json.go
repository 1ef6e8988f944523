package adapter

import (
	"encoding/json"
)

// JSON decodes message payloads
type JSON interface {
	Unmarshal(data []byte, v any) error
}

type stdJSON struct{}

// NewJSON returns a JSON backed by encoding/json
func NewJSON() JSON {
	return &stdJSON{}
}

func (j *stdJSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
