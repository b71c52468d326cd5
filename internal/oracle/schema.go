package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildAnalysisJSONSchema returns the JSON Schema every oracle response must
// satisfy before its score is trusted. Extra properties are kept in the raw
// payload and ignored here.
func BuildAnalysisJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"authenticity": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"anomalies": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"authenticity", "anomalies"},
	}
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func analysisSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = compileSchema(BuildAnalysisJSONSchema())
	})
	return compiledSchema, compileErr
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analysis.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("analysis.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateAnalysisJSON checks data against the analysis schema.
func ValidateAnalysisJSON(data []byte) error {
	schema, err := analysisSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ParseAnalysis validates raw and decodes the verdict fields.
func ParseAnalysis(raw []byte) (Analysis, error) {
	if err := ValidateAnalysisJSON(raw); err != nil {
		return Analysis{}, err
	}
	var body struct {
		Authenticity float64  `json:"authenticity"`
		Anomalies    []string `json:"anomalies"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	if body.Anomalies == nil {
		body.Anomalies = []string{}
	}
	return Analysis{
		Authenticity: body.Authenticity,
		Anomalies:    body.Anomalies,
		Raw:          append(json.RawMessage(nil), raw...),
	}, nil
}
