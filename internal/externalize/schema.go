package externalize

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	js, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource("metadata.schema.json", js); err != nil {
		return nil, err
	}
	return compiler.Compile("metadata.schema.json")
})

// Validate checks raw sidecar bytes against the embedded JSON Schema.
func Validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile metadata schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse metadata: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("metadata does not match schema: %w", err)
	}
	return nil
}
