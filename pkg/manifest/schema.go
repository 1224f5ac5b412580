package manifest

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Document shapes are validated fail-closed before any entry is converted:
// a document that does not match its schema never reaches the checker.

const matrixSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["hals"],
  "additionalProperties": false,
  "properties": {
    "hals": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "versions", "interfaces"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "optional": {"type": "boolean"},
          "versions": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "pattern": "^[0-9]+\\.[0-9]+$"}
          },
          "interfaces": {"$ref": "#/$defs/interfaces"}
        }
      }
    }
  },
  "$defs": {
    "interfaces": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "instances": {
            "type": "array",
            "items": {"type": "string", "minLength": 1}
          }
        }
      }
    }
  }
}`

const manifestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["hals"],
  "additionalProperties": false,
  "properties": {
    "hals": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "version", "transport", "interfaces"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "version": {"type": "string", "pattern": "^[0-9]+\\.[0-9]+$"},
          "transport": {"enum": ["binderized", "passthrough"]},
          "arch": {"enum": ["32", "64", "32+64"]},
          "interfaces": {"$ref": "#/$defs/interfaces"}
        }
      }
    }
  },
  "$defs": {
    "interfaces": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "instances": {
            "type": "array",
            "items": {"type": "string", "minLength": 1}
          }
        }
      }
    }
  }
}`

var (
	matrixSchema   = mustCompile("compatibility-matrix.schema.json", matrixSchemaJSON)
	manifestSchema = mustCompile("hal-manifest.schema.json", manifestSchemaJSON)
)

func mustCompile(name, source string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "https://haltest.schemas.local/" + name
	if err := c.AddResource(url, strings.NewReader(source)); err != nil {
		panic(fmt.Sprintf("manifest: schema load failed: %v", err))
	}
	compiled, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("manifest: schema compile failed: %v", err))
	}
	return compiled
}
