// Copyright 2026 © The Chimera Authors
// SPDX-License-Identifier: Apache-2.0

package signature

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadTable loads a classification table from a YAML or JSON file.
func LoadTable(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("table path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return parseTableAuto(data)
	}
}

func parseTableAuto(data []byte) (*Table, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if table, err := ParseJSON(data); err == nil {
			return table, nil
		}
	}
	if table, err := ParseYAML(data); err == nil {
		return table, nil
	}
	if table, err := ParseJSON(data); err == nil {
		return table, nil
	}
	return nil, fmt.Errorf("unsupported table format")
}

// ParseJSON loads a table from JSON and validates it.
func ParseJSON(data []byte) (*Table, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse json table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

// ParseYAML loads a table from YAML and validates it.
func ParseYAML(data []byte) (*Table, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse yaml table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

// MarshalYAML serializes a table to YAML, validating first.
func MarshalYAML(table *Table) ([]byte, error) {
	if table == nil {
		return nil, fmt.Errorf("table is nil")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return yaml.Marshal(table)
}
