package catalog

import (
	"github.com/dukex/socialflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

const draftSchema = "http://json-schema.org/draft-07/schema#"

// Schema builds the JSON schema of an action type's params.
// Number fields also accept strings so a field can hold a variable reference.
func (c *Catalog) Schema(actionType models.ActionType) (*models.JSONSchema, error) {
	entry, err := c.lookup(actionType)
	if err != nil {
		return nil, err
	}

	descriptor := entry.Descriptor
	schema := &models.JSONSchema{
		Schema:      draftSchema,
		Type:        "object",
		Title:       descriptor.Label,
		Description: descriptor.Description,
		Properties:  make(map[string]*models.Property, len(descriptor.ExpectedFields)),
		Required:    make([]string, 0),
	}

	for _, field := range descriptor.ExpectedFields {
		schema.Properties[field.Name] = fieldProperty(field)

		if field.Required {
			schema.Required = append(schema.Required, field.Name)
		}
	}

	return schema, nil
}

func fieldProperty(field FieldSpec) *models.Property {
	property := &models.Property{Description: field.Label}

	switch field.Kind {
	case KindNumber:
		property.Type = []string{"number", "string"}
	case KindActions:
		property.Type = "array"
		property.Items = &models.Property{Type: "object", Required: []string{"type"}}

		return property
	default:
		property.Type = "string"
	}

	// minLength only constrains string values, so numbers pass untouched
	if field.Required {
		one := 1
		property.MinLength = &one
	}

	if len(field.Enum) > 0 {
		property.Enum = make([]any, 0, len(field.Enum))
		for _, value := range field.Enum {
			property.Enum = append(property.Enum, value)
		}
	}

	return property
}

// ParamIssue is a single schema violation in an action's params.
type ParamIssue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Missing reports whether the issue is an absent or empty required field.
func (i ParamIssue) Missing() bool {
	return i.Rule == "required" || i.Rule == "string_gte"
}

// CheckParams validates an action's params against its type's schema.
// A missing or empty required field is reported; empty optional fields are fine.
func (c *Catalog) CheckParams(action *models.Action) ([]ParamIssue, error) {
	if action == nil {
		return nil, models.ErrNullEntry
	}

	schema, err := c.Schema(action.Type)
	if err != nil {
		return nil, err
	}

	data, err := action.ParamsMap()
	if err != nil {
		return nil, err
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return nil, err
	}

	issues := make([]ParamIssue, 0)
	if result.Valid() {
		return issues, nil
	}

	for _, desc := range result.Errors() {
		field := desc.Field()
		if property, ok := desc.Details()["property"].(string); ok && field == gojsonschema.STRING_CONTEXT_ROOT {
			field = property
		}

		issues = append(issues, ParamIssue{Field: field, Rule: desc.Type(), Message: desc.Description()})
	}

	return issues, nil
}
