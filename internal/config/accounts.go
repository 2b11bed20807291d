package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/socialspy/internal/record"
)

// Map returns the roster keyed by platform with handles normalized and
// blanks dropped.
func (a AccountsConfig) Map() map[record.Platform][]string {
	out := make(map[record.Platform][]string)
	for p, handles := range map[record.Platform][]string{
		record.YouTube:   a.YouTube,
		record.Instagram: a.Instagram,
		record.TikTok:    a.TikTok,
	} {
		for _, h := range handles {
			if h = record.NormalizeHandle(h); h != "" {
				out[p] = append(out[p], h)
			}
		}
	}
	return out
}

// Count returns the number of non-blank handles.
func (a AccountsConfig) Count() int {
	n := 0
	for _, handles := range a.Map() {
		n += len(handles)
	}
	return n
}

// LoadAccounts reads the competitor roster from the config in dir.
func LoadAccounts(dir string) (map[record.Platform][]string, error) {
	cfg, err := Load(dir)
	if err != nil {
		return nil, err
	}
	return cfg.Accounts.Map(), nil
}

// AddAccount appends handle to the platform roster in config.yaml. It
// reports false when the handle is already present. Comments and layout of
// the rest of the file are kept.
func AddAccount(dir string, platform record.Platform, handle string) (bool, error) {
	handle = record.NormalizeHandle(handle)
	if handle == "" {
		return false, errors.New("handle is required")
	}
	return editRoster(dir, platform, func(seq *yaml.Node) bool {
		for _, n := range seq.Content {
			if strings.EqualFold(record.NormalizeHandle(n.Value), handle) {
				return false
			}
		}
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: handle})
		return true
	})
}

// RemoveAccount deletes handle from the platform roster. It reports false
// when the handle was not present.
func RemoveAccount(dir string, platform record.Platform, handle string) (bool, error) {
	handle = record.NormalizeHandle(handle)
	if handle == "" {
		return false, errors.New("handle is required")
	}
	return editRoster(dir, platform, func(seq *yaml.Node) bool {
		kept := seq.Content[:0]
		removed := false
		for _, n := range seq.Content {
			if strings.EqualFold(record.NormalizeHandle(n.Value), handle) {
				removed = true
				continue
			}
			kept = append(kept, n)
		}
		seq.Content = kept
		return removed
	})
}

func editRoster(dir string, platform record.Platform, edit func(seq *yaml.Node) bool) (bool, error) {
	if strings.TrimSpace(dir) == "" {
		return false, errors.New("config dir is required")
	}
	if !platform.Valid() {
		return false, fmt.Errorf("unknown platform %q", platform)
	}

	path := Path(dir)
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return false, fmt.Errorf("parse config: %w", err)
		}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return false, errors.New("parse config: top level must be a mapping")
	}

	accounts, err := child(root, "accounts", yaml.MappingNode)
	if err != nil {
		return false, err
	}
	seq, err := child(accounts, string(platform), yaml.SequenceNode)
	if err != nil {
		return false, err
	}

	if !edit(seq) {
		return false, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return false, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return false, fmt.Errorf("encode config: %w", err)
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return false, err
	}
	return true, nil
}

// child returns the value node for key in mapping m, creating it with kind
// when missing or null.
func child(m *yaml.Node, key string, kind yaml.Kind) (*yaml.Node, error) {
	tag := "!!map"
	if kind == yaml.SequenceNode {
		tag = "!!seq"
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != key {
			continue
		}
		v := m.Content[i+1]
		if v.Kind == kind {
			return v, nil
		}
		if v.Kind == yaml.ScalarNode && (v.Tag == "!!null" || v.Value == "") {
			*v = yaml.Node{Kind: kind, Tag: tag}
			return v, nil
		}
		return nil, fmt.Errorf("config key %q has unexpected type", key)
	}
	v := &yaml.Node{Kind: kind, Tag: tag}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
	return v, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
