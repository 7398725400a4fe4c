package config

import (
	"errors"

	"github.com/invopop/jsonschema"
)

var (
	ErrGeneratedSchemaIsNil = errors.New("generated JSON Schema is nil")
)

// JSONSchema describes config.yaml. Secrets that may only come from the
// environment are left out, as are unknown keys.
func JSONSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  false,
	}
	schema := r.Reflect(&Config{})
	if schema == nil {
		return nil, ErrGeneratedSchemaIsNil
	}

	schema.Title = "veil configuration"
	schema.Description = "Configuration for the veil PII analysis server, version " + VersionString

	return schema.MarshalJSON()
}
