package definition

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile parses a single workflow definition from a YAML file.
func LoadFile(path string) (WorkflowDefinition, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path is caller-supplied and expected to be trusted
	if err != nil {
		return WorkflowDefinition{}, fmt.Errorf("definition: reading %s: %w", path, err)
	}
	return parse(content, path)
}

// LoadDir parses every *.yaml/*.yml file directly under dir as a workflow
// definition. Files that fail to parse are reported in the returned error
// alongside any definitions that did parse successfully.
func LoadDir(dir string) ([]WorkflowDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("definition: reading directory %s: %w", dir, err)
	}

	var defs []WorkflowDefinition
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, def)
	}

	if len(errs) > 0 {
		return defs, fmt.Errorf("definition: %d of %d files failed to parse: %w", len(errs), len(entries), joinErrs(errs))
	}
	return defs, nil
}

func isYAMLFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func parse(content []byte, sourcePath string) (WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := yaml.Unmarshal(content, &def); err != nil {
		return def, fmt.Errorf("definition: parsing %s: %w", sourcePath, err)
	}
	if def.Name == "" {
		return def, fmt.Errorf("definition: %s missing required field: name", sourcePath)
	}
	if len(def.Steps) == 0 {
		return def, fmt.Errorf("definition: %s declares no steps", sourcePath)
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	}
	return def, nil
}

func joinErrs(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
