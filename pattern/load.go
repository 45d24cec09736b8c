package pattern

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of a rule catalog.
//
//	patterns:
//	  - signature: db.execute
//	    kind: sink
//	    category: sql-injection
type catalogFile struct {
	Patterns []Pattern `yaml:"patterns"`
}

// LoadCatalog parses a YAML catalog document. Parsing is strict: unknown
// fields and malformed kinds are errors, since a silently ignored rule
// entry would weaken the analysis without anyone noticing.
func LoadCatalog(r io.Reader) ([]Pattern, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("pattern: parse catalog: %w", err)
	}
	return file.Patterns, nil
}

// LoadCatalogFile reads a catalog from disk.
func LoadCatalogFile(path string) ([]Pattern, error) {
	f, err := os.Open(path) // #nosec
	if err != nil {
		return nil, fmt.Errorf("pattern: open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}
