package knowledge

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/knowledge.yaml
var defaultKnowledge []byte

// File is the on-disk rule file format.
type File struct {
	Version string  `yaml:"version" json:"version"`
	Entries []Entry `yaml:"entries" json:"entries" jsonschema:"required,minItems=1"`
}

// ParseYAML decodes a rule file. Unknown keys are rejected so typos in field names
// surface at load time instead of silently dropping data.
func ParseYAML(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, ErrEmptyTable
		}
		return File{}, fmt.Errorf("decode rule file: %w", err)
	}
	return f, nil
}

// Default returns the rule table compiled into the binary.
func Default() (*Table, error) {
	f, err := ParseYAML(defaultKnowledge)
	if err != nil {
		return nil, err
	}
	return NewTable(f.Version, "embedded", f.Entries)
}

// ExpandPatterns resolves doublestar globs to a sorted, de-duplicated file list.
func ExpandPatterns(patterns ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", p, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadFiles reads every file matched by patterns and builds one table from the
// concatenated entries (lexical file order, declaration order within a file).
func LoadFiles(patterns ...string) (*Table, error) {
	files, err := ExpandPatterns(patterns...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no rule files match %s", strings.Join(patterns, ", "))
	}

	var (
		entries  []Entry
		versions []string
	)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		f, err := ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		entries = append(entries, f.Entries...)
		if v := strings.TrimSpace(f.Version); v != "" && !slices.Contains(versions, v) {
			versions = append(versions, v)
		}
	}
	return NewTable(strings.Join(versions, "+"), strings.Join(files, ","), entries)
}

// FileSource loads rules from YAML files on every Load call.
type FileSource struct {
	Patterns []string
}

func (s FileSource) Load(_ context.Context) (*Table, error) {
	return LoadFiles(s.Patterns...)
}

// EmbeddedSource serves the compiled-in default rules.
type EmbeddedSource struct{}

func (EmbeddedSource) Load(_ context.Context) (*Table, error) {
	return Default()
}
