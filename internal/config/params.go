// Package config loads session parameters from TOML, YAML or commented JSON
// files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Variant table names that override shared keys.
var variantTables = map[string]struct{}{
	"keyboard": {},
	"mouse":    {},
}

// Params is an immutable mapping of named session parameters.
type Params struct {
	values map[string]any
	source string
	notes  []string
}

// FromMap builds Params from an in-memory mapping.
func FromMap(values map[string]any) *Params {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Params{values: copied, source: "<memory>"}
}

// Load reads the configuration at path and flattens it for the given variant.
// Problems never fail the load: they are recorded as notes and defaults apply.
func Load(path, variant string) *Params {
	p := &Params{values: map[string]any{}, source: "<defaults>"}
	path = strings.TrimSpace(path)
	if path == "" {
		p.note("no config file specified, using default values")
		return p
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			p.note(fmt.Sprintf("config file %s not found, using default values", path))
			return p
		}
		p.note(fmt.Sprintf("failed to stat config %s: %v", path, err))
		return p
	}

	raw, err := decodeFile(path)
	if err != nil {
		p.note(fmt.Sprintf("failed to decode config %s: %v", path, err))
		return p
	}
	p.values = flatten(raw, variant)
	p.source = path
	return p
}

// Source reports where the parameters came from.
func (p *Params) Source() string {
	return p.source
}

// Notes returns problems met while loading.
func (p *Params) Notes() []string {
	return append([]string(nil), p.notes...)
}

// Lookup returns the raw value stored under key.
func (p *Params) Lookup(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the parameter names in sorted order.
func (p *Params) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Params) note(msg string) {
	p.notes = append(p.notes, msg)
}

func decodeFile(path string) (map[string]any, error) {
	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc", ".config":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stripComments(data), &raw); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw == nil {
			raw = map[string]any{}
		}
	default:
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func flatten(raw map[string]any, variant string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if _, ok := variantTables[k]; ok {
			if _, isTable := v.(map[string]any); isTable {
				continue
			}
		}
		out[k] = v
	}
	if table, ok := raw[variant].(map[string]any); ok {
		for k, v := range table {
			out[k] = v
		}
	}
	return out
}

// stripComments removes // line comments and /* */ block comments outside of strings.
func stripComments(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString := false
	escaped := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if c == '/' && i+1 < len(data) {
			switch data[i+1] {
			case '/':
				for i < len(data) && data[i] != '\n' {
					i++
				}
				if i < len(data) {
					out = append(out, '\n')
				}
				continue
			case '*':
				i += 2
				for i+1 < len(data) && !(data[i] == '*' && data[i+1] == '/') {
					i++
				}
				i++
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
