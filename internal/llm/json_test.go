package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose wrapped", `Here is the outline: {"a":1} hope it helps`, `{"a":1}`, false},
		{"array", `noise [1,2,3] trailing`, `[1,2,3]`, false},
		{"nested braces", `intro {"a":{"b":2}} outro`, `{"a":{"b":2}}`, false},
		{"no json", `sorry, I cannot do that`, "", true},
		{"broken json", `{"a":`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvokeJSON(t *testing.T) {
	stub := NewStubClient("```json\n{\"title\":\"Plan\"}\n```")

	var out struct {
		Title string `json:"title"`
	}
	require.NoError(t, InvokeJSON(context.Background(), stub, "sys", "usr", &out))
	assert.Equal(t, "Plan", out.Title)
	assert.Equal(t, "sys", stub.LastSystem)
}

func TestInvokeJSONGarbage(t *testing.T) {
	stub := NewStubClient("not json at all")

	var out map[string]any
	err := InvokeJSON(context.Background(), stub, "s", "u", &out)
	require.Error(t, err)
}

func TestStubClientRespectsCancellation(t *testing.T) {
	stub := NewStubClient(`{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stub.Invoke(ctx, "s", "u")
	require.ErrorIs(t, err, context.Canceled)
}
