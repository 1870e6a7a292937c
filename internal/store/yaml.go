package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteYAML renders a JSON document as block-style YAML at dir/name,
// keeping the document's key order. It returns the written path.
func WriteYAML(dir, name string, doc json.RawMessage) (string, error) {
	node, err := yamlNode(doc)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", name, err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	return p, nil
}

// yamlNode parses JSON (a YAML subset) into a node tree and drops the flow
// and quoting styles so the document encodes as block YAML.
func yamlNode(doc json.RawMessage) (*yaml.Node, error) {
	if len(bytes.TrimSpace(doc)) == 0 {
		doc = json.RawMessage("{}")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, doc); err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(compact.Bytes(), &node); err != nil {
		return nil, err
	}
	clearStyle(&node)
	return &node, nil
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}
