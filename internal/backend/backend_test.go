package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/dshills/codenotate/pkg/types"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		err   bool
	}{
		{name: "plain", input: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", input: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose around", input: "Here you go: {\"a\":{\"b\":2}} hope it helps", want: `{"a":{"b":2}}`},
		{name: "empty", input: "   ", err: true},
		{name: "not json", input: "{oops", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.input)
			if tt.err {
				assert.ErrorIs(t, err, ErrSchemaViolation)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, types.IssueCode(""), Classify(nil))
	assert.Equal(t, types.IssueSchemaViolation, Classify(errors.Join(ErrSchemaViolation, errors.New("x"))))
	assert.Equal(t, types.IssueBackendUnavailable, Classify(ErrBackendUnavailable))
	assert.Equal(t, types.IssueBackendUnavailable, Classify(context.DeadlineExceeded))
}

func TestDecode(t *testing.T) {
	var set types.AnnotationSet
	require.NoError(t, Decode(json.RawMessage(`{"header":{"purpose":"p"},"inline_comments":[{"insert_before_line":2,"comment_lines":["* x"]}]}`), &set))
	assert.Equal(t, "p", set.Header.Purpose)
	require.Len(t, set.Comments, 1)
	assert.Equal(t, 2, set.Comments[0].InsertBeforeLine)

	err := Decode(json.RawMessage(`{"inline_comments":"nope"}`), &set)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestSchema_JSONSchema(t *testing.T) {
	doc := AnnotationSetSchema().JSONSchema()
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []string{"header", "inline_comments"}, doc["required"])

	props := doc["properties"].(map[string]interface{})
	comments := props["inline_comments"].(map[string]interface{})
	assert.Equal(t, "array", comments["type"])
	item := comments["items"].(map[string]interface{})
	itemProps := item["properties"].(map[string]interface{})
	line := itemProps["insert_before_line"].(map[string]interface{})
	assert.Equal(t, "integer", line["type"])
	assert.Equal(t, 1.0, line["minimum"])

	_, hasCode := itemProps["code"]
	assert.False(t, hasCode)
}

func TestSchema_Genai(t *testing.T) {
	s := FileContextSchema().Genai()
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"overview", "named_blocks", "dependencies"}, s.PropertyOrdering)
	assert.Equal(t, genai.TypeArray, s.Properties["named_blocks"].Type)
	assert.Equal(t, genai.TypeInteger, s.Properties["named_blocks"].Items.Properties["start_line"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["dependencies"].Items.Type)

	var nilSchema *Schema
	assert.Nil(t, nilSchema.Genai())
	assert.Nil(t, nilSchema.JSONSchema())
}

func TestOpenAI_Generate(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "```json\\n{\\\"overview\\\":\\\"ok\\\"}\\n```" + `"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	b, err := NewOpenAI(srv.URL, "secret", "test-model", time.Second)
	require.NoError(t, err)
	defer b.Close()

	raw, err := b.Generate(context.Background(), Request{
		System:      "sys",
		Prompt:      "describe",
		Schema:      FileContextSchema(),
		SchemaName:  SchemaFileContext,
		Temperature: 0.1,
		MaxTokens:   100,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"overview":"ok"}`, string(raw))

	assert.Equal(t, "test-model", captured["model"])
	assert.Equal(t, 100.0, captured["max_tokens"])
	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 2)
	format := captured["response_format"].(map[string]interface{})
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, SchemaFileContext, format["json_schema"].(map[string]interface{})["name"])
}

func TestOpenAI_Errors(t *testing.T) {
	status := http.StatusServiceUnavailable
	content := "not json at all"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("overloaded"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []interface{}{map[string]interface{}{"message": map[string]string{"content": content}}},
		})
	}))
	defer srv.Close()

	b, err := NewOpenAI(srv.URL, "", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, b.Model())

	_, err = b.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "503")

	status = http.StatusOK
	_, err = b.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrSchemaViolation)

	_, err = b.Generate(context.Background(), Request{Prompt: "  "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestOpenAI_Unreachable(t *testing.T) {
	b, err := NewOpenAI("http://127.0.0.1:1/v1/chat/completions", "", "", 200*time.Millisecond)
	require.NoError(t, err)

	_, err = b.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, types.IssueBackendUnavailable, Classify(err))
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "", 0)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNew_Factory(t *testing.T) {
	t.Setenv(EnvGeminiAPIKey, "")
	t.Setenv(EnvGoogleAPIKey, "")
	t.Setenv(EnvProvider, "")

	b, err := New(context.Background(), Config{Provider: "openai", Endpoint: "http://localhost:9/v1"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, b.Name())

	b, err = New(context.Background(), Config{Provider: "LMStudio"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, b.Name())

	_, err = New(context.Background(), Config{Provider: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = New(context.Background(), Config{Provider: "gemini"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestDetectProvider(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvGeminiAPIKey, "")
	t.Setenv(EnvGoogleAPIKey, "")
	assert.Equal(t, ProviderOpenAI, DetectProvider())

	t.Setenv(EnvGoogleAPIKey, "k")
	assert.Equal(t, ProviderGemini, DetectProvider())

	t.Setenv(EnvProvider, "OpenAI")
	assert.Equal(t, ProviderOpenAI, DetectProvider())
}

func TestMock(t *testing.T) {
	m := NewMock(func(req Request, call int) (json.RawMessage, error) {
		if call == 0 {
			return nil, ErrBackendUnavailable
		}
		return JSON(map[string]string{"schema": req.SchemaName}), nil
	})

	_, err := m.Generate(context.Background(), Request{Prompt: "a"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	raw, err := m.Generate(context.Background(), Request{Prompt: "b", SchemaName: SchemaAnnotationSet})
	require.NoError(t, err)
	assert.JSONEq(t, `{"schema":"annotation_set"}`, string(raw))
	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, "b", m.Calls()[1].Prompt)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Generate(ctx, Request{Prompt: "c"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, m.CallCount())
}
