package aiextract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/llm"
)

// maxDocumentLength bounds how much document text is sent for extraction,
// leaving room for the schema and response.
const maxDocumentLength = 8000

// Extractor asks the LLM for schema-shaped metadata.
type Extractor struct {
	client      llm.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// ExtractorConfig holds extraction parameters.
type ExtractorConfig struct {
	// Model overrides the client's default model when non-empty.
	Model string

	// Temperature defaults to 0.1 if zero.
	Temperature float64

	// MaxTokens defaults to 2000 if zero.
	MaxTokens int
}

// NewExtractor creates a metadata extractor on top of the chat client.
func NewExtractor(client llm.Client, cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	return &Extractor{
		client:      client,
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// Extract returns schema-validated metadata for the document text. The
// schema defaults to the document type's standard schema when nil.
func (e *Extractor) Extract(ctx context.Context, text, documentType string, schema *Schema) (map[string]any, error) {
	s := DefaultSchema(documentType)
	if schema != nil {
		s = *schema
	}

	resp, err := e.client.Chat(ctx, &llm.ChatRequest{
		Model: e.model,
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, systemPrompt(s)),
			llm.NewTextMessage(llm.RoleUser, userPrompt(text, s)),
		},
		Temperature: &e.temperature,
		MaxTokens:   &e.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}

	metadata, err := ParseResponse(resp.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing extraction response: %w", err)
	}

	return Validate(metadata, s), nil
}

func systemPrompt(schema Schema) string {
	schemaJSON, _ := json.MarshalIndent(schema, "", "  ")

	return fmt.Sprintf(`You are a precise document metadata extractor.
Extract information from documents according to the provided schema.
Output ONLY valid JSON matching the schema. Do not include explanations or markdown.

Schema:
%s

Rules:
1. Extract only information explicitly stated in the document
2. Use null for missing fields
3. Format dates as ISO 8601 (YYYY-MM-DD)
4. Be concise and accurate
5. Output must be valid JSON`, schemaJSON)
}

func userPrompt(text string, schema Schema) string {
	// Truncate on runes so a multibyte character is never split mid-sequence.
	if runes := []rune(text); len(runes) > maxDocumentLength {
		text = string(runes[:maxDocumentLength]) + "\n...[truncated]"
	}

	names := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		names[i] = f.Name
	}

	return fmt.Sprintf(`Extract the following fields from this document:
%s

Document text:
---
%s
---

Output JSON:`, strings.Join(names, ", "), text)
}

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	bareJSON   = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParseResponse recovers a JSON object from an LLM response. It tries a
// direct parse, then a fenced code block, then the outermost braces.
func ParseResponse(response string) (map[string]any, error) {
	var metadata map[string]any
	if err := json.Unmarshal([]byte(response), &metadata); err == nil {
		return metadata, nil
	}

	if m := fencedJSON.FindStringSubmatch(response); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &metadata); err == nil {
			return metadata, nil
		}
	}

	if m := bareJSON.FindString(response); m != "" {
		if err := json.Unmarshal([]byte(m), &metadata); err == nil {
			return metadata, nil
		}
	}

	return nil, fmt.Errorf("no valid JSON object in response")
}

// Validate coerces extracted values onto the schema: every schema field is
// present in the result, values of the wrong type are converted where
// possible, and unconvertible numbers become nil.
func Validate(metadata map[string]any, schema Schema) map[string]any {
	validated := make(map[string]any, len(schema.Fields))

	for _, field := range schema.Fields {
		value, ok := metadata[field.Name]
		if !ok || value == nil {
			validated[field.Name] = nil
			continue
		}

		switch field.Type {
		case FieldString:
			if _, isString := value.(string); !isString {
				value = fmt.Sprintf("%v", value)
			}
		case FieldArray:
			if _, isArray := value.([]any); !isArray {
				value = []any{value}
			}
		case FieldNumber:
			switch v := value.(type) {
			case float64:
			case string:
				parsed, err := strconv.ParseFloat(v, 64)
				if err != nil {
					value = nil
				} else {
					value = parsed
				}
			default:
				value = nil
			}
		}

		validated[field.Name] = value
	}

	return validated
}
