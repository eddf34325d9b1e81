package judge

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Language identifies a supported submission language. The sandbox
// currently compiles a single language; the registry exists so that
// unsupported tags are rejected before any sandbox is spawned.
type Language struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// Registry maps language id to its definition.
type Registry map[string]Language

// DefaultRegistry is what the judge supports out of the box.
func DefaultRegistry() Registry {
	return Registry{
		"cpp": {ID: "cpp", Name: "C++17 (GCC 13)"},
	}
}

// LoadRegistry reads a language registry from a TOML file:
//
//	[[languages]]
//	id = "cpp"
//	name = "C++17 (GCC 13)"
func LoadRegistry(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read language registry: %w", err)
	}
	var root struct {
		Languages []Language `toml:"languages"`
	}
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse language registry: %w", err)
	}
	reg := make(Registry, len(root.Languages))
	for _, l := range root.Languages {
		if l.ID == "" {
			return nil, fmt.Errorf("language entry is missing an id")
		}
		reg[l.ID] = l
	}
	return reg, nil
}

// Supported reports whether a language tag can be judged.
func (r Registry) Supported(id string) bool {
	_, ok := r[id]
	return ok
}
