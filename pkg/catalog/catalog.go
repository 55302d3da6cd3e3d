package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// CapabilityRecord describes one registered capability. Records are immutable
// after load.
type CapabilityRecord struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	BinaryPath  string                 `json:"binary_path"`
	Handler     string                 `json:"handler"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Catalog is the immutable, in-memory collection of capability records.
// It is safe for concurrent readers; there is no mutation after Load.
type Catalog struct {
	records []CapabilityRecord
	index   map[string]int
}

// Loader loads and validates catalog sources
type Loader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewLoader creates a new catalog loader
func NewLoader(logger zerolog.Logger) *Loader {
	schemaLoader := gojsonschema.NewStringLoader(SourceSchema)
	return &Loader{
		logger:       logger.With().Str("component", "catalog-loader").Logger(),
		schemaLoader: schemaLoader,
	}
}

// Load reads, validates, and indexes a catalog source file. A missing
// artifact is a warning per record, not a load failure; a capability may be
// registered before its artifact is deployed.
func (l *Loader) Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
	}

	cat, err := l.Parse(data)
	if err != nil {
		return nil, err
	}

	for _, missing := range cat.MissingArtifacts() {
		l.logger.Warn().
			Str("capability", missing.Name).
			Str("binary_path", missing.BinaryPath).
			Msg("Capability registered but artifact not found")
	}

	l.logger.Info().
		Int("capabilities", cat.Len()).
		Str("path", path).
		Msg("Catalog loaded")

	return cat, nil
}

// Parse validates and indexes a catalog source document.
func (l *Loader) Parse(data []byte) (*Catalog, error) {
	if err := l.validateSchema(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	var records []CapabilityRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	index := make(map[string]int, len(records))
	for i, rec := range records {
		if _, exists := index[rec.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, rec.Name)
		}
		index[rec.Name] = i
	}

	return &Catalog{
		records: records,
		index:   index,
	}, nil
}

// validateSchema validates the source document against the JSON schema
func (l *Loader) validateSchema(data []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(l.schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errMsg string
		for i, verr := range result.Errors() {
			if i > 0 {
				errMsg += "; "
			}
			errMsg += verr.String()
		}
		return fmt.Errorf("schema validation errors: %s", errMsg)
	}

	return nil
}

// Lookup returns the record registered under name, by exact match.
func (c *Catalog) Lookup(name string) (*CapabilityRecord, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return &c.records[i], true
}

// Records returns the records in source order. Callers must not mutate them.
func (c *Catalog) Records() []CapabilityRecord {
	return c.records
}

// Len returns the number of registered capabilities.
func (c *Catalog) Len() int {
	return len(c.records)
}

// MissingArtifacts returns the records whose artifact does not currently
// exist on disk.
func (c *Catalog) MissingArtifacts() []CapabilityRecord {
	var missing []CapabilityRecord
	for _, rec := range c.records {
		if _, err := os.Stat(rec.BinaryPath); err != nil {
			missing = append(missing, rec)
		}
	}
	return missing
}
