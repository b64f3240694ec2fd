// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// parseJSON reads a JSON config file into a partial StructuredConfig.
// Fields absent from the file stay zero and lose against earlier sources
// during the merge.
func parseJSON(path string) (*StructuredConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading json config %q: %w", path, err)
	}

	cfg := &StructuredConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing json config %q: %w", path, err)
	}
	return cfg, nil
}
