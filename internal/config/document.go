package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lokalise/nginx-loadtest/pkg/jsonschema"
)

// optionsSchema is the structural schema for options documents. Semantic
// rules (preAllocatedVUs <= maxVUs, threshold syntax) live in Validate.
const optionsSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["scenarios"],
	"properties": {
		"scenarios": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": { "$ref": "#/definitions/scenario" }
		},
		"thresholds": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"items": { "type": "string" }
			}
		},
		"summaryTrendStats": {
			"type": "array",
			"items": { "type": "string" }
		},
		"summaryTimeUnit": { "type": "string", "enum": ["", "s", "ms", "us"] },
		"noColor": { "type": "boolean" },
		"settings": {
			"type": "object",
			"properties": {
				"timeout": { "$ref": "#/definitions/duration" },
				"maxIdleConnsPerHost": { "type": "integer", "minimum": 0 },
				"insecureSkipVerify": { "type": "boolean" }
			},
			"additionalProperties": false
		}
	},
	"additionalProperties": false,
	"definitions": {
		"duration": {
			"oneOf": [
				{ "type": "string", "pattern": "^([0-9]+|([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+)$" },
				{ "type": "integer", "minimum": 0 }
			]
		},
		"scenario": {
			"type": "object",
			"required": ["executor", "stages"],
			"properties": {
				"executor": { "type": "string" },
				"startRate": { "type": "integer", "minimum": 0 },
				"timeUnit": { "$ref": "#/definitions/duration" },
				"preAllocatedVUs": { "type": "integer", "minimum": 0 },
				"maxVUs": { "type": "integer", "minimum": 0 },
				"startTime": { "$ref": "#/definitions/duration" },
				"gracefulStop": { "$ref": "#/definitions/duration" },
				"stages": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"required": ["target", "duration"],
						"properties": {
							"target": { "type": "integer", "minimum": 0 },
							"duration": { "$ref": "#/definitions/duration" }
						},
						"additionalProperties": false
					}
				},
				"tags": {
					"type": "object",
					"additionalProperties": { "type": "string" }
				}
			},
			"additionalProperties": false
		}
	}
}`

var compiledOptionsSchema = jsonschema.MustCompile("options.schema.json", optionsSchema)

// ValidateDocument checks a raw options document (YAML or JSON, chosen by
// path extension as in ParseConfig) against the options JSON Schema.
func ValidateDocument(data []byte, path string) error {
	var doc interface{}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		var raw interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
		// Round-trip through JSON so the validator sees JSON types only.
		b, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("failed to convert YAML config: %w", err)
		}
		if err := json.Unmarshal(b, &doc); err != nil {
			return fmt.Errorf("failed to convert YAML config: %w", err)
		}
	}

	if errs := compiledOptionsSchema.Validate(doc); len(errs) > 0 {
		return fmt.Errorf("config does not match schema: %w", errs)
	}
	return nil
}
