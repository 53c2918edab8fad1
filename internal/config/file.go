package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ErrExists is returned by Init when the target file is already present.
var ErrExists = errors.New("config file already exists")

// Init writes the example config to path with owner-only permissions.
func Init(path string, example []byte, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.WithHint(errors.Wrapf(ErrExists, "%s", path), "pass --force to overwrite it")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	if err := os.WriteFile(path, example, 0o600); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// Set updates a dotted key (e.g. "providers.groq.model") in the YAML file at
// path, creating intermediate maps as needed. Comments and key order in the
// file are preserved. The edited file must load and validate before it
// replaces the original; on failure the original is left untouched.
func Set(path, key, value string) error {
	var doc yaml.Node
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = nil
	case err != nil:
		return errors.Wrapf(err, "read %s", path)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return errors.Newf("%s: top level must be a mapping", path)
	}

	parts := strings.Split(key, ".")
	node := root
	for i, part := range parts {
		last := i == len(parts)-1
		child := lookup(node, part)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			if last {
				child = &yaml.Node{}
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: part}, child)
		}
		if last {
			setValue(child, value)
			break
		}
		if child.Kind != yaml.MappingNode {
			return errors.Newf("%s: %s is not a mapping", path, strings.Join(parts[:i+1], "."))
		}
		node = child
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "encode config")
	}
	return replaceValidated(path, buf.Bytes())
}

// replaceValidated writes data next to path, loads it as a config and only
// then renames it over path.
func replaceValidated(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	tmp, err := os.CreateTemp(dir, ".gh-commit-ai-*.yml")
	if err != nil {
		return errors.Wrap(err, "create temp config")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmpPath)
	}
	if _, err := Load(LoadOptions{Path: tmpPath}); err != nil {
		return errors.WithHintf(errors.Wrapf(err, "%s left unchanged", path),
			"fix the value or edit %s by hand", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// setValue stores value as a scalar, or as a flow sequence when it contains commas.
func setValue(node *yaml.Node, value string) {
	head, line, foot := node.HeadComment, node.LineComment, node.FootComment
	if strings.Contains(value, ",") {
		*node = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: item})
			}
		}
	} else {
		*node = yaml.Node{Kind: yaml.ScalarNode, Value: value}
	}
	node.HeadComment, node.LineComment, node.FootComment = head, line, foot
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "marshal config")
	}
	return out, nil
}
