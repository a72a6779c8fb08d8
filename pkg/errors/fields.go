package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FieldError holds the messages reported for one field of a request
type FieldError struct {
	Field    string
	Messages []string
}

// FieldErrors is a backend error body decoded in document order.
// Bodies look like {"field": "msg"} or {"field": ["msg", ...]}.
type FieldErrors []FieldError

// ParseFieldErrors decodes a JSON object body. Anything that is not an
// object yields nil.
func ParseFieldErrors(body []byte) FieldErrors {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	var fields FieldErrors
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fields
		}
		key, ok := tok.(string)
		if !ok {
			return fields
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fields
		}
		if msgs := messages(raw); len(msgs) > 0 {
			fields = append(fields, FieldError{Field: key, Messages: msgs})
		}
	}
	return fields
}

func messages(raw json.RawMessage) []string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}

	var list []interface{}
	if err := json.Unmarshal(raw, &list); err == nil {
		var out []string
		for _, item := range list {
			switch v := item.(type) {
			case string:
				out = append(out, v)
			case nil:
			default:
				out = append(out, fmt.Sprint(v))
			}
		}
		return out
	}

	var nested map[string]interface{}
	if err := json.Unmarshal(raw, &nested); err == nil {
		var parts []string
		for _, f := range ParseFieldErrors(raw) {
			parts = append(parts, f.Messages...)
		}
		if len(parts) > 0 {
			return []string{strings.Join(parts, " ")}
		}
	}
	return nil
}

// Get returns the first message reported for field
func (f FieldErrors) Get(field string) (string, bool) {
	for _, fe := range f {
		if fe.Field == field && len(fe.Messages) > 0 {
			return fe.Messages[0], true
		}
	}
	return "", false
}

// First returns the first message of the first field in keys that has one
func (f FieldErrors) First(keys ...string) (string, bool) {
	for _, key := range keys {
		if msg, ok := f.Get(key); ok {
			return msg, true
		}
	}
	return "", false
}

// Any returns the first message in document order
func (f FieldErrors) Any() (string, bool) {
	for _, fe := range f {
		if len(fe.Messages) > 0 {
			return fe.Messages[0], true
		}
	}
	return "", false
}

// Map flattens the errors for rendering
func (f FieldErrors) Map() map[string][]string {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string][]string, len(f))
	for _, fe := range f {
		out[fe.Field] = fe.Messages
	}
	return out
}
