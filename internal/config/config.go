package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/agentfleet/mcpmux/internal/errors"
)

// catalogFile mirrors the on-disk .mcpmux.toml structure.
type catalogFile struct {
	Servers []ServerEntry `toml:"servers"`
}

// Load reads, validates, and indexes the catalog at the given path.
// Any failure here is fatal for the process; a malformed catalog is never
// partially loaded.
func (d *DefaultLoader) Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", errors.ErrConfigInvalid)
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: catalog file not found (%s)", errors.ErrConfigInvalid, path)
		}
		return nil, fmt.Errorf("%w: failed to stat catalog file (%s): %w", errors.ErrConfigInvalid, path, err)
	}

	var cfg catalogFile
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode catalog file (%s): %w", errors.ErrConfigInvalid, path, err)
	}

	recordEnvOrder(md, cfg.Servers)

	if err := validate(cfg.Servers); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrConfigInvalid, err)
	}

	return NewCatalog(cfg.Servers), nil
}

// recordEnvOrder walks the decoder metadata to capture the declaration order
// of each server's env keys. TOML arrays of tables emit one 'servers' key per
// element, so the element index advances with each occurrence.
func recordEnvOrder(md toml.MetaData, servers []ServerEntry) {
	idx := -1
	for _, key := range md.Keys() {
		if len(key) == 1 && key[0] == "servers" {
			idx++
			continue
		}
		if idx >= 0 && idx < len(servers) && len(key) == 3 && key[0] == "servers" && key[1] == "env" {
			servers[idx].envOrder = append(servers[idx].envOrder, key[2])
		}
	}
}

func validate(servers []ServerEntry) error {
	seen := make(map[string]struct{}, len(servers))

	for _, s := range servers {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("server name cannot be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate server name '%s'", name)
		}
		seen[name] = struct{}{}

		if strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("server '%s' has no launch command", name)
		}

		for _, cred := range s.RequiredCredentials {
			if strings.TrimSpace(cred.Name) == "" {
				return fmt.Errorf("server '%s' declares a credential with no name", name)
			}
			if cred.ValidationPattern != "" {
				if _, err := regexp.Compile(cred.ValidationPattern); err != nil {
					return fmt.Errorf(
						"server '%s' credential '%s' has an invalid validation pattern: %w",
						name, cred.Name, err,
					)
				}
			}
		}
	}

	return nil
}
