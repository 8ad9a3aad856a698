package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

type fileFormat struct {
	Entries map[string]map[string]Entry `yaml:"entries"`
}

// LoadFile reads a YAML pricing file and merges its entries over base.
// Environment variables in the file are expanded.
//
//	entries:
//	  chat:
//	    openai: {unit: token, unit_cost: 0.000004, minimum: 0.002}
func LoadFile(path string, base Entries) (Entries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parsing pricing file: %w", err)
	}

	merged := make(Entries, len(base))
	for kind, byProvider := range base {
		m := make(map[string]Entry, len(byProvider))
		for name, e := range byProvider {
			m[name] = e
		}
		merged[kind] = m
	}

	for kindName, byProvider := range f.Entries {
		kind := provider.Kind(kindName)
		switch kind {
		case provider.KindChat, provider.KindImage, provider.KindTTS, provider.KindMusic:
		default:
			return nil, fmt.Errorf("parsing pricing file: unknown operation kind %q", kindName)
		}
		if merged[kind] == nil {
			merged[kind] = make(map[string]Entry)
		}
		for name, e := range byProvider {
			switch e.Unit {
			case UnitToken, UnitSecond, UnitImage, UnitClip, UnitRequest:
			default:
				return nil, fmt.Errorf("parsing pricing file: %s/%s: unknown unit %q", kindName, name, e.Unit)
			}
			merged[kind][name] = e
		}
	}

	return merged, nil
}
