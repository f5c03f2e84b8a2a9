package backend

import "google.golang.org/genai"

// Type is a JSON schema type name
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
)

// Schema is a provider-neutral subset of JSON schema. Each backend converts
// it to its own structured-output format.
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	Order       []string // Property order; also the required list
	Items       *Schema
	Minimum     *float64
}

// Genai converts the schema for the Gemini API
func (s *Schema) Genai() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Minimum:     s.Minimum,
	}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
	case TypeArray:
		out.Type = genai.TypeArray
	case TypeInteger:
		out.Type = genai.TypeInteger
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = p.Genai()
		}
		out.Required = append([]string(nil), s.Order...)
		out.PropertyOrdering = append([]string(nil), s.Order...)
	}
	out.Items = s.Items.Genai()
	return out
}

// JSONSchema converts the schema to a plain JSON schema document
func (s *Schema) JSONSchema() map[string]interface{} {
	if s == nil {
		return nil
	}
	out := map[string]interface{}{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if len(s.Properties) > 0 {
		props := make(map[string]interface{}, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSONSchema()
		}
		out["properties"] = props
		out["required"] = append([]string(nil), s.Order...)
		out["additionalProperties"] = false
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	return out
}

func str(desc string) *Schema {
	return &Schema{Type: TypeString, Description: desc}
}

func strList(desc string) *Schema {
	return &Schema{Type: TypeArray, Description: desc, Items: &Schema{Type: TypeString}}
}

func minimum(v float64) *float64 {
	return &v
}

// FileContextSchema is the response shape of the context request
func FileContextSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"overview": str("What the file does and why it exists, in two to four sentences"),
			"named_blocks": {
				Type: TypeArray,
				Items: &Schema{
					Type: TypeObject,
					Properties: map[string]*Schema{
						"name":        str("Block name exactly as declared"),
						"start_line":  {Type: TypeInteger, Minimum: minimum(1)},
						"description": str("One sentence on what the block does"),
					},
					Order: []string{"name", "start_line", "description"},
				},
			},
			"dependencies": strList("Tables, files, classes and external routines the file relies on"),
		},
		Order: []string{"overview", "named_blocks", "dependencies"},
	}
}

// AnnotationSetSchema is the response shape of a chunk annotation request.
// It has no field that could carry code.
func AnnotationSetSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"header": {
				Type: TypeObject,
				Properties: map[string]*Schema{
					"purpose":       str("What this section does"),
					"key_functions": strList("Routines defined or called here"),
					"dependencies":  strList("Tables, files or routines this section touches"),
				},
				Order: []string{"purpose", "key_functions", "dependencies"},
			},
			"inline_comments": {
				Type: TypeArray,
				Items: &Schema{
					Type: TypeObject,
					Properties: map[string]*Schema{
						"insert_before_line": {Type: TypeInteger, Minimum: minimum(1), Description: "1-based line number within the section"},
						"comment_lines":      strList("Comment lines, each starting with the comment marker"),
						"context":            str("Short note on why the comment is placed here"),
					},
					Order: []string{"insert_before_line", "comment_lines", "context"},
				},
			},
		},
		Order: []string{"header", "inline_comments"},
	}
}
