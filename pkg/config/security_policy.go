// Package config provides configuration file loading.
package config

import (
	"fmt"
	"os"

	"github.com/dukex/autograph/pkg/security"
	"gopkg.in/yaml.v3"
)

// LoadSecurityPolicy loads a scanner policy from a YAML file. Keys present in the
// file replace the corresponding defaults; absent keys keep them.
func LoadSecurityPolicy(filepath string) (security.Policy, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return security.Policy{}, fmt.Errorf("failed to read security policy file %s: %w", filepath, err)
	}

	return ParseSecurityPolicy(data)
}

// ParseSecurityPolicy parses YAML policy data over the default policy.
func ParseSecurityPolicy(data []byte) (security.Policy, error) {
	policy := security.DefaultPolicy()

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return security.Policy{}, fmt.Errorf("failed to parse security policy YAML: %w", err)
	}

	if _, err := security.NewScanner(policy); err != nil {
		return security.Policy{}, fmt.Errorf("invalid security policy: %w", err)
	}

	return policy, nil
}

// ScannerFromFile returns a scanner for the policy at filepath, or for the default
// policy when filepath is empty.
func ScannerFromFile(filepath string) (*security.Scanner, error) {
	if filepath == "" {
		return security.NewScanner(security.DefaultPolicy())
	}

	policy, err := LoadSecurityPolicy(filepath)
	if err != nil {
		return nil, err
	}

	return security.NewScanner(policy)
}
