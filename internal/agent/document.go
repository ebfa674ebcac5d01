package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is the merged result of one orchestrator run: agent name to that
// agent's result, in insertion order. Setting an existing name replaces the
// value but keeps its original position.
type Document struct {
	keys   []string
	values map[string]any
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: make(map[string]any)}
}

// Set stores v under name.
func (d *Document) Set(name string, v any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, ok := d.values[name]; !ok {
		d.keys = append(d.keys, name)
	}
	d.values[name] = v
}

// Get returns the value stored under name.
func (d *Document) Get(name string) (any, bool) {
	v, ok := d.values[name]
	return v, ok
}

// Keys returns the names in insertion order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of entries.
func (d *Document) Len() int {
	return len(d.keys)
}

// MarshalJSON writes the entries as a JSON object in insertion order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the order of its top-level keys.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document must be a JSON object")
	}

	d.keys = nil
	d.values = make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		d.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// Normalize returns a copy whose values are plain JSON types (map[string]any,
// []any, float64, string, bool, nil), which is what the text renderers walk.
func (d *Document) Normalize() (*Document, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out := NewDocument()
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return out, nil
}
