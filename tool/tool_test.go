package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedy0526/agents/core"
)

func sumTool() *FunctionTool {
	return NewFunctionTool(
		"calculate_sum",
		"Calculate the sum of two numbers",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []string{"a", "b"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		},
	)
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry(sumTool())

	result, err := r.Execute(context.Background(), "calculate_sum", map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Execute(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.Equal(t, core.ErrToolNotFound, core.CodeOf(err))
}

func TestRegistry_ValidationFailure(t *testing.T) {
	r := NewRegistry(sumTool())

	_, err := r.Execute(context.Background(), "calculate_sum", map[string]any{"a": 2.0})
	require.Error(t, err)
	assert.Equal(t, core.ErrToolExecutionFailed, core.CodeOf(err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "b", verr.Field)
}

func TestRegistry_ExecutionErrorWrapped(t *testing.T) {
	boom := NewFunctionTool("boom", "always fails", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("kaput")
		})
	r := NewRegistry(boom)

	_, err := r.Execute(context.Background(), "boom", nil)
	require.Error(t, err)
	assert.Equal(t, core.ErrToolExecutionFailed, core.CodeOf(err))
	assert.Contains(t, err.Error(), "kaput")
}

func TestRegistry_CodedErrorPassthrough(t *testing.T) {
	coded := NewFunctionTool("coded", "fails with code", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, core.NewAgentError(core.ErrUpstreamTransient, "throttled")
		})
	r := NewRegistry(coded)

	_, err := r.Execute(context.Background(), "coded", nil)
	require.Error(t, err)
	assert.Equal(t, core.ErrUpstreamTransient, core.CodeOf(err))
}

func TestRegistry_Subset(t *testing.T) {
	r := NewRegistry(
		sumTool(),
		NewFunctionTool("other", "another tool", map[string]any{"type": "object"},
			func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }),
	)

	sub := r.Subset([]string{"calculate_sum", "missing"})
	assert.Equal(t, []string{"calculate_sum"}, sub.Names())

	// The full registry is untouched.
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_Describe(t *testing.T) {
	r := NewRegistry(sumTool())
	catalog := r.Describe()
	assert.Contains(t, catalog, "calculate_sum")
	assert.Contains(t, catalog, "sum of two numbers")
}

func TestCreateSchema(t *testing.T) {
	type args struct {
		Query string   `json:"query" description:"Search query"`
		Limit int      `json:"limit,omitempty"`
		Score *float64 `json:"score"`
	}

	schema := CreateSchema(args{})
	props := schema["properties"].(map[string]any)
	assert.Equal(t, "string", props["query"].(map[string]any)["type"])
	assert.Equal(t, "Search query", props["query"].(map[string]any)["description"])
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, "number", props["score"].(map[string]any)["type"])

	// Only query is required: limit is omitempty, score is a pointer.
	assert.Equal(t, []string{"query"}, schema["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
		},
		// JSON round-tripped schemas carry []any.
		"required": []any{"name"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"name": "x", "count": 3.0}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"count": 1}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"name": "x", "count": 1.5}, schema))
	// Extra fields are tolerated.
	assert.NoError(t, ValidateParameters(map[string]any{"name": "x", "extra": true}, schema))
}
