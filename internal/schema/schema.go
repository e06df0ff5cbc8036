// Package schema validates coredev's JSON data files against embedded
// JSON schemas.
package schema

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Document names one of the embedded schemas.
type Document string

const (
	Settings    Document = "settings"
	Credentials Document = "credentials"
	HealthCheck Document = "healthcheck"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Documents lists every known document kind.
func Documents() []Document {
	return []Document{Settings, Credentials, HealthCheck}
}

// Validate checks raw JSON against the schema for doc. An empty document is
// treated as "{}".
func Validate(doc Document, data []byte) error {
	raw, err := schemaFS.ReadFile("schemas/" + string(doc) + ".json")
	if err != nil {
		return fmt.Errorf("unknown schema %q: %w", doc, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		data = []byte("{}")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(raw),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("%s schema validation failed:\n  - %s", doc, strings.Join(errorMessages, "\n  - "))
	}
	return nil
}
