package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Payload is a create request body built by copying allow-listed fields
// out of a fetched Record. Fields marshal in insertion order.
type Payload struct {
	fields *orderedmap.OrderedMap[string, json.RawMessage]
}

func NewPayload() *Payload {
	return &Payload{fields: orderedmap.New[string, json.RawMessage]()}
}

// Set stores raw JSON under key, replacing any previous value in place.
func (p *Payload) Set(key string, v json.RawMessage) {
	if len(bytes.TrimSpace(v)) == 0 {
		v = json.RawMessage("null")
	}
	p.fields.Set(key, v)
}

func (p *Payload) SetValue(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	p.Set(key, data)
	return nil
}

// Copy copies key from rec when present and reports whether it did.
func (p *Payload) Copy(rec Record, key string) bool {
	v, ok := rec[key]
	if ok {
		p.Set(key, v)
	}
	return ok
}

// CopyOr copies key from rec, or stores fallback when rec lacks it.
func (p *Payload) CopyOr(rec Record, key string, fallback string) {
	if !p.Copy(rec, key) {
		p.Set(key, json.RawMessage(fallback))
	}
}

func (p *Payload) Get(key string) (json.RawMessage, bool) {
	return p.fields.Get(key)
}

func (p *Payload) Has(key string) bool {
	_, ok := p.fields.Get(key)
	return ok
}

func (p *Payload) Keys() []string {
	keys := make([]string, 0, p.fields.Len())
	for pair := p.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func (p *Payload) MarshalJSON() ([]byte, error) {
	return p.fields.MarshalJSON()
}
