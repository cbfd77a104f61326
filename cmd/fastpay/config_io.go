// Copyright 2025 Certen Protocol

package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// writeJSONConfig marshals cfg as indented JSON and writes it to path,
// matching the format pkg/config's loaders expect back.
func writeJSONConfig(path string, cfg interface{}) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
