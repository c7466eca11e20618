package planner

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// candidateSchema is the JSON schema a model response must satisfy before
// it is even considered for graph construction: a plan is an object holding
// a flat list of artifact specs.
const candidateSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["artifacts"],
  "properties": {
    "artifacts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "contract"],
        "properties": {
          "id":            {"type": "string", "minLength": 1},
          "description":   {"type": "string"},
          "contract":      {"type": "string", "minLength": 1},
          "requires":      {"type": "array", "items": {"type": "string"}},
          "modifies":      {"type": "array", "items": {"type": "string"}},
          "produces_file": {"type": "string"},
          "domain_type":   {"type": "string"}
        }
      }
    }
  }
}`

var compiledCandidateSchema *jsonschema.Schema

func init() {
	var doc any
	if err := json.Unmarshal([]byte(candidateSchema), &doc); err != nil {
		panic(fmt.Sprintf("planner: invalid embedded candidate schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("candidate.json", doc); err != nil {
		panic(fmt.Sprintf("planner: schema resource: %v", err))
	}
	schema, err := c.Compile("candidate.json")
	if err != nil {
		panic(fmt.Sprintf("planner: schema compile: %v", err))
	}
	compiledCandidateSchema = schema
}

// validateCandidateJSON checks raw model output against candidateSchema
// before it is unmarshalled into candidatePayload, so malformed structural
// shapes fail with a schema error rather than a confusing decode error.
func validateCandidateJSON(raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("candidate is not valid JSON: %w", err)
	}
	return compiledCandidateSchema.Validate(doc)
}
