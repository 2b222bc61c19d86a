package bootstrap

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// OverrideTarget scopes bootstrap config overrides.
type OverrideTarget string

const (
	OverrideBoth      OverrideTarget = "both"
	OverrideHost      OverrideTarget = "host"
	OverrideContainer OverrideTarget = "container"
)

// ConfigOverride sets a dotted config key (e.g. "http.addr") in a generated config.
type ConfigOverride struct {
	Target OverrideTarget
	Path   string
	Value  any
}

// ParseOverride reads "[host:|container:]key.path=value". The value is decoded
// as a YAML scalar, so "true" and "8080" keep their types.
func ParseOverride(raw string) (ConfigOverride, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok {
		return ConfigOverride{}, fmt.Errorf("override %q: want key=value", raw)
	}
	override := ConfigOverride{Target: OverrideBoth, Path: strings.TrimSpace(key)}
	if scope, rest, ok := strings.Cut(override.Path, ":"); ok {
		switch target := OverrideTarget(scope); target {
		case OverrideBoth, OverrideHost, OverrideContainer:
			override.Target = target
			override.Path = strings.TrimSpace(rest)
		default:
			return ConfigOverride{}, fmt.Errorf("override %q: unknown target %q", raw, scope)
		}
	}
	if _, err := splitKeyPath(override.Path); err != nil {
		return ConfigOverride{}, err
	}
	var decoded any
	if err := yaml.Unmarshal([]byte(value), &decoded); err != nil || decoded == nil {
		decoded = value
	}
	override.Value = decoded
	return override, nil
}

func (o ConfigOverride) appliesTo(target OverrideTarget) bool {
	return o.Target == OverrideBoth || o.Target == "" || o.Target == target
}

// overrideYAML rewrites doc in place for every override aimed at target. It
// edits the node tree, so key order and untouched values survive.
func overrideYAML(doc []byte, overrides []ConfigOverride, target OverrideTarget) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	changed := false
	for _, override := range overrides {
		if !override.appliesTo(target) {
			continue
		}
		if err := setNode(root.Content[0], override.Path, override.Value); err != nil {
			return nil, err
		}
		changed = true
	}
	if !changed {
		return doc, nil
	}
	return yaml.Marshal(&root)
}

func splitKeyPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("config override path is required")
	}
	keys := strings.Split(path, ".")
	for i, key := range keys {
		keys[i] = strings.TrimSpace(key)
		if keys[i] == "" {
			return nil, fmt.Errorf("invalid config override path %q", path)
		}
	}
	return keys, nil
}

func setNode(node *yaml.Node, path string, value any) error {
	keys, err := splitKeyPath(path)
	if err != nil {
		return err
	}
	var encoded yaml.Node
	if err := encoded.Encode(value); err != nil {
		return fmt.Errorf("config override %q: %w", path, err)
	}
	for i, key := range keys {
		if node.Kind != yaml.MappingNode {
			return fmt.Errorf("config override %q: %q is not a map", path, strings.Join(keys[:i], "."))
		}
		child := mappingValue(node, key)
		if i == len(keys)-1 {
			if child == nil {
				appendPair(node, key, &encoded)
			} else {
				*child = encoded
			}
			return nil
		}
		if child == nil || child.Tag == "!!null" {
			next := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			if child == nil {
				appendPair(node, key, next)
			} else {
				*child = *next
				next = child
			}
			child = next
		}
		node = child
	}
	return nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func appendPair(node *yaml.Node, key string, value *yaml.Node) {
	node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
}
