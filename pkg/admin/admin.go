// Package admin is the bulk block/allow list file format consumed by the
// relay CLI's import/export subcommands (spec.md §6's admin surface,
// generalized to files the way the teacher's cmd/warren/apply.go generalizes
// one YAML document into a cluster resource).
package admin

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DomainListFile is one YAML document listing blocked or allowed domains,
// e.g.:
//
//	kind: blocks
//	domains:
//	  - spammer.example
//	  - bad-actor.example
type DomainListFile struct {
	Kind    string   `yaml:"kind"`
	Domains []string `yaml:"domains"`
}

const (
	// KindBlocks marks a file as a block list.
	KindBlocks = "blocks"
	// KindAllows marks a file as an allow list.
	KindAllows = "allows"
)

// LoadDomainListFile reads and parses a DomainListFile from path.
func LoadDomainListFile(path string) (*DomainListFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f DomainListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Kind != KindBlocks && f.Kind != KindAllows {
		return nil, fmt.Errorf("%s: kind must be %q or %q, got %q", path, KindBlocks, KindAllows, f.Kind)
	}
	return &f, nil
}

// WriteDomainListFile marshals a DomainListFile of the given kind and
// domains to path.
func WriteDomainListFile(path, kind string, domains []string) error {
	f := DomainListFile{Kind: kind, Domains: domains}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshal %s list: %w", kind, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
