// Package devseed loads fixture entries for the mock EdgeKV store from
// JSON or YAML files. The sandbox binary reads seeds from the real
// filesystem; tests hand in an in-memory one.
package devseed

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Entry is one seed record. Value is stored verbatim; expiries follow
// the write endpoint's semantics (absolute Unix seconds, or a relative
// TTL in seconds that wins when both are present).
type Entry struct {
	Key           string         `json:"key" yaml:"key"`
	Value         string         `json:"value" yaml:"value"`
	Expiration    int64          `json:"expiration,omitempty" yaml:"expiration,omitempty"`
	ExpirationTTL int64          `json:"expiration_ttl,omitempty" yaml:"expiration_ttl,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Load reads seed entries from path. The format is picked by extension:
// .yaml and .yml parse as YAML, everything else as JSON.
func Load(fsys afero.Fs, path string) ([]Entry, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read seed file: %w", err)
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("devseed: parse YAML seed: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("devseed: parse JSON seed: %w", err)
		}
	}

	for i, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			return nil, fmt.Errorf("devseed: entry %d is missing a key", i)
		}
	}
	return entries, nil
}
