package optimistic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoKeepsChangeOnSuccess(t *testing.T) {
	state := []string{}

	got, err := Do(context.Background(),
		func() { state = append(state, "tmp") },
		func(context.Context) (string, error) { return "row-1", nil },
		func() { state = state[:0] },
	)

	require.NoError(t, err)
	assert.Equal(t, "row-1", got)
	assert.Equal(t, []string{"tmp"}, state)
}

func TestDoInvertsOnFailure(t *testing.T) {
	errDown := errors.New("store down")
	state := []string{"a"}

	got, err := Do(context.Background(),
		func() { state = append(state, "tmp") },
		func(context.Context) (int, error) { return 7, errDown },
		func() { state = state[:1] },
	)

	assert.ErrorIs(t, err, errDown)
	assert.Zero(t, got)
	assert.Equal(t, []string{"a"}, state)
}

func TestDoNilHooks(t *testing.T) {
	_, err := Do[struct{}](context.Background(), nil,
		func(context.Context) (struct{}, error) { return struct{}{}, errors.New("nope") },
		nil,
	)
	assert.Error(t, err)
}

func TestDoPassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, nil, func(ctx context.Context) (bool, error) { return false, ctx.Err() }, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
