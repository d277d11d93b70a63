package proxy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
)

// tomlFile is the layout of a TOML proxy descriptor:
//
//	[[proxy]]
//	server = "http://1.2.3.4:8080"
//	country = "GB"
type tomlFile struct {
	Proxy []entity.Proxy `toml:"proxy"`
}

// Load reads a proxy descriptor. Files ending in .toml are decoded as TOML,
// everything else as a JSON array.
func Load(path string) ([]entity.Proxy, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var file tomlFile
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("failed to decode proxy file %s: %w", path, err)
		}
		return validate(path, file.Proxy)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy file %s: %w", path, err)
	}
	var proxies []entity.Proxy
	if err := json.Unmarshal(data, &proxies); err != nil {
		return nil, fmt.Errorf("failed to decode proxy file %s: %w", path, err)
	}
	return validate(path, proxies)
}

func validate(path string, proxies []entity.Proxy) ([]entity.Proxy, error) {
	for i, p := range proxies {
		if strings.TrimSpace(p.Server) == "" {
			return nil, fmt.Errorf("proxy file %s: entry %d has no server", path, i)
		}
	}
	return proxies, nil
}
