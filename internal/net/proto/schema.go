package proto

import (
	"github.com/invopop/jsonschema"
)

// PayloadSchema reflects the JSON schema of a message payload. Messages
// without a typed payload return nil.
func PayloadSchema(spec Spec) *jsonschema.Schema {
	if !spec.HasPayload() {
		return nil
	}
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.ReflectFromType(spec.PayloadType())
	if schema == nil {
		return nil
	}
	schema.Title = spec.Name
	schema.Description = spec.Category.String() + " message on the " + spec.Channel.String() + " channel"
	return schema
}

// Schemas returns the payload schema of every typed message, keyed by
// message name.
func Schemas(reg *Registry) map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema)
	for _, spec := range reg.Specs() {
		if schema := PayloadSchema(spec); schema != nil {
			out[spec.Name] = schema
		}
	}
	return out
}
