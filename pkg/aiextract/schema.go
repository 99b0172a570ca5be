// Package aiextract pulls structured metadata out of document text using an
// LLM constrained by per-type extraction schemas.
package aiextract

// Field types understood by the validator.
const (
	FieldString = "string"
	FieldArray  = "array"
	FieldNumber = "number"
)

// Field describes one extractable attribute.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Schema is the set of fields extracted for a document type.
type Schema struct {
	Fields []Field `json:"fields"`
}

var baseFields = []Field{
	{Name: "title", Type: FieldString, Description: "Document title"},
	{Name: "date", Type: FieldString, Description: "Document date (ISO format)"},
	{Name: "summary", Type: FieldString, Description: "Brief summary (max 200 chars)"},
}

// DefaultSchema returns the extraction schema for a document type. Unknown
// types get the base schema.
func DefaultSchema(documentType string) Schema {
	switch documentType {
	case "contract":
		return Schema{Fields: append(append([]Field{}, baseFields...),
			Field{Name: "parties", Type: FieldArray, Description: "List of contracting parties"},
			Field{Name: "contract_amounts", Type: FieldArray, Description: "Contract amounts with currency"},
			Field{Name: "effective_date", Type: FieldString, Description: "Contract effective date"},
			Field{Name: "expiry_date", Type: FieldString, Description: "Contract expiry date"},
			Field{Name: "key_terms", Type: FieldArray, Description: "Key contract terms"},
		)}
	case "sop":
		return Schema{Fields: append(append([]Field{}, baseFields...),
			Field{Name: "department", Type: FieldString, Description: "Responsible department"},
			Field{Name: "version", Type: FieldString, Description: "SOP version number"},
			Field{Name: "approval_date", Type: FieldString, Description: "Approval date"},
			Field{Name: "sections", Type: FieldArray, Description: "Main section titles"},
			Field{Name: "procedures", Type: FieldArray, Description: "Key procedures"},
		)}
	case "official_document":
		return Schema{Fields: append(append([]Field{}, baseFields...),
			Field{Name: "document_number", Type: FieldString, Description: "Official document number"},
			Field{Name: "sender", Type: FieldString, Description: "Sender organization/person"},
			Field{Name: "recipient", Type: FieldString, Description: "Recipient organization/person"},
			Field{Name: "subject", Type: FieldString, Description: "Document subject"},
			Field{Name: "action_required", Type: FieldString, Description: "Required action if any"},
		)}
	default:
		return Schema{Fields: append([]Field{}, baseFields...)}
	}
}
