package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into an inline JSON schema suitable for a
// function declaration. Fields without omitempty are required.
func GenerateSchema[T any]() json.RawMessage {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
		Anonymous:                 true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""

	b, err := json.Marshal(schema)
	if err != nil {
		// schemas are built from static structs at init, a failure is a programming error
		panic(err)
	}
	return b
}
