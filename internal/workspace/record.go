package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a loosely typed API object. Field values keep the exact JSON
// the API returned so they can be passed through unchanged.
type Record map[string]json.RawMessage

func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

func (r Record) Raw(key string) (json.RawMessage, bool) {
	v, ok := r[key]
	return v, ok
}

// String returns the field as a string, or "" when it is absent or not a
// JSON string.
func (r Record) String(key string) string {
	var s string
	if v, ok := r[key]; ok {
		_ = json.Unmarshal(v, &s)
	}
	return s
}

// Bool returns the field as a bool, or false when it is absent or not a
// JSON boolean.
func (r Record) Bool(key string) bool {
	var b bool
	if v, ok := r[key]; ok {
		_ = json.Unmarshal(v, &b)
	}
	return b
}

// ID returns a string or numeric identifier as text. Numbers keep their
// exact digits.
func (r Record) ID(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	v = bytes.TrimSpace(v)
	if len(v) > 0 && v[0] == '"' {
		return r.String(key)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return ""
	}
	return n.String()
}

// Object decodes a nested object field.
func (r Record) Object(key string) (Record, error) {
	v, ok := r[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	var out Record
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	if out == nil {
		return nil, fmt.Errorf("field %q is null", key)
	}
	return out, nil
}

// Set stores v under key, marshalling it to JSON.
func (r Record) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	r[key] = data
	return nil
}

// Records decodes the array stored under key in a list response such as
// {"clusters": [...]}. A missing key yields an empty list.
func Records(body json.RawMessage, key string) ([]Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var page map[string]json.RawMessage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse list response: %w", err)
	}
	items, ok := page[key]
	if !ok {
		return nil, nil
	}
	var out []Record
	if err := json.Unmarshal(items, &out); err != nil {
		return nil, fmt.Errorf("parse %q: %w", key, err)
	}
	return out, nil
}
