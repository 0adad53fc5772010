package expressions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/routinekit/pkg/schema"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry()
	require.NoError(t, err)
	return r
}

func TestRegistry_DispatchesOnEngine(t *testing.T) {
	r := newRegistry(t)
	data := map[string]any{"answers": map[string]any{"triage": "urgent"}}

	for _, cond := range []schema.Condition{
		{Expression: `answers.triage == "urgent"`},
		{Engine: "CEL", Expression: `answers.triage == "urgent"`},
		{Engine: "expr", Expression: `answers.triage == "urgent"`},
		{Engine: "jq", Expression: `.answers.triage == "urgent"`},
	} {
		ok, err := r.Holds(context.Background(), cond, data)
		require.NoError(t, err, cond.Engine)
		assert.True(t, ok, cond.Engine)
	}
}

func TestRegistry_UnknownEngine(t *testing.T) {
	_, err := newRegistry(t).Evaluate(context.Background(), schema.Condition{Engine: "lua", Expression: "true"}, nil)
	var gErr *schema.GraphError
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, schema.ErrCodeExpression, gErr.Code)
	assert.Contains(t, gErr.Message, "lua")
}

func TestRegistry_Check(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	assert.NoError(t, r.Check(ctx, schema.Condition{Expression: `inputs.age > 18`}))
	assert.NoError(t, r.Check(ctx, schema.Condition{Engine: "jq", Expression: `.inputs.age > 18`}))
	assert.Error(t, r.Check(ctx, schema.Condition{Expression: `inputs.age >`}))
	assert.Error(t, r.Check(ctx, schema.Condition{Engine: "jq", Expression: `.inputs |||`}))
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{"", false},
		{"x", true},
		{0, false},
		{int64(2), true},
		{0.0, false},
		{[]any{}, false},
		{[]any{1}, true},
		{map[string]any{}, false},
		{struct{}{}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truthy(tt.in), "%#v", tt.in)
	}
}
