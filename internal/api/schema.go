package api

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/analysis.schema.json
var analysisSchemaJSON []byte

const analysisSchemaName = "analysis.schema.json"

// compileAnalysisSchema compiles the embedded schema for imported records.
func compileAnalysisSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(analysisSchemaName, bytes.NewReader(analysisSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile(analysisSchemaName)
}

// validateAnalysis checks a raw import payload against the record schema.
func validateAnalysis(schema *jsonschema.Schema, body []byte) error {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("JSON schema validation failed: %w", err)
	}
	return nil
}
