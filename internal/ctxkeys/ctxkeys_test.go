package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunID(t *testing.T) {
	_, ok := RunID(context.Background())
	assert.False(t, ok)

	_, ok = RunID(WithRunID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := RunID(WithRunID(context.Background(), "run-1"))
	assert.True(t, ok)
	assert.Equal(t, "run-1", id)
}

func TestStepName(t *testing.T) {
	ctx := WithStepName(WithRunID(context.Background(), "run-1"), "design")

	step, ok := StepName(ctx)
	assert.True(t, ok)
	assert.Equal(t, "design", step)

	id, ok := RunID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "run-1", id)

	_, ok = StepName(context.Background())
	assert.False(t, ok)
}
