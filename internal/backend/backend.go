package backend

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dshills/codenotate/pkg/types"
)

// Common errors
var (
	// ErrBackendUnavailable covers connectivity failures, timeouts and
	// non-success responses from the generation backend.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrSchemaViolation means the backend answered but the payload does not
	// satisfy the requested schema.
	ErrSchemaViolation = errors.New("schema violation")

	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrMissingAPIKey       = errors.New("api key not configured")
	ErrEmptyPrompt         = errors.New("prompt cannot be empty")
)

// Request is one schema-constrained generation call
type Request struct {
	System      string
	Prompt      string
	Schema      *Schema
	SchemaName  string
	Temperature float32
	MaxTokens   int
}

// Backend generates schema-shaped JSON from a prompt
type Backend interface {
	// Generate returns the raw JSON object produced for req
	Generate(ctx context.Context, req Request) (json.RawMessage, error)

	// Name returns the provider name
	Name() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the backend
	Close() error
}

// ValidateRequest validates a generation request
func ValidateRequest(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// Classify maps an error from Generate onto the pipeline's issue taxonomy.
// Anything that is not a schema violation is retried as unavailability.
func Classify(err error) types.IssueCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSchemaViolation):
		return types.IssueSchemaViolation
	default:
		return types.IssueBackendUnavailable
	}
}

// Decode unmarshals a backend payload into v, wrapping failures as schema violations
func Decode(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(ErrSchemaViolation, err)
	}
	return nil
}

// extractJSON trims markdown fences and surrounding prose from a model reply
func extractJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	if s == "" || !json.Valid([]byte(s)) {
		return nil, ErrSchemaViolation
	}
	return json.RawMessage(s), nil
}
