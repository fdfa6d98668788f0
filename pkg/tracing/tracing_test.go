package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartReturnsUsableContextAndFinish(t *testing.T) {
	ctx, finish := Start(context.Background(), "test.span")
	require.NotNil(t, ctx)
	finish(errors.New("boom"))
}
