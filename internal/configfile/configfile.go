// Package configfile loads TOML configuration files into appctx.Config
// snapshots. Nested tables flatten to dotted keys:
//
//	[database]
//	dsn = "file:blog.db"
//
// becomes "database.dsn".
package configfile

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/rafbgarcia/appctx"
)

// Load reads path and returns its flattened configuration.
func Load(path string) (appctx.Config, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return appctx.Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return fromMap(raw)
}

// Parse decodes TOML text; used for inline configuration.
func Parse(text string) (appctx.Config, error) {
	var raw map[string]any
	if _, err := toml.Decode(text, &raw); err != nil {
		return appctx.Config{}, fmt.Errorf("config parse failed: %w", err)
	}
	return fromMap(raw)
}

func fromMap(raw map[string]any) (appctx.Config, error) {
	flat := make(map[string]any)
	if err := flatten("", raw, flat); err != nil {
		return appctx.Config{}, err
	}
	return appctx.NewConfig(flat)
}

func flatten(prefix string, in map[string]any, out map[string]any) error {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := in[k].(type) {
		case map[string]any:
			if err := flatten(key, v, out); err != nil {
				return err
			}
		case []map[string]any:
			return fmt.Errorf("config key %q: arrays of tables are not supported", key)
		default:
			out[key] = v
		}
	}
	return nil
}
