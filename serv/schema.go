package serv

import (
	"github.com/invopop/jsonschema"
)

// ConfigSchema returns the JSON schema of the config file, property names
// follow the config keys
func ConfigSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		FieldNameTag:              "mapstructure",
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	s := r.Reflect(&Config{})
	s.Title = "mongobridge config"
	return s
}
