// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"application-engine/internal/template"
)

// LoadFile reads, validates and compiles a single definition file.
func LoadFile(path string, compiler *Compiler) (*template.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateDefinition(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	tpl, err := compiler.Compile(&def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return tpl, nil
}

// LoadDir compiles every .json definition under dir and registers the
// results. Files load in name order so failures are deterministic.
func LoadDir(dir string, compiler *Compiler, reg *template.Registry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		tpl, err := LoadFile(filepath.Join(dir, name), compiler)
		if err != nil {
			return err
		}
		if err := reg.Register(tpl); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
