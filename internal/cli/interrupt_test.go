package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterruptHandler(t *testing.T) {
	var out bytes.Buffer
	h := NewInterruptHandler(&out)

	ctx, stop := h.HandleInterrupts(context.Background(), "Run the same import again to resume.")
	defer stop()

	assert.NoError(t, ctx.Err())
	assert.False(t, h.WasInterrupted())

	h.Interrupt()
	h.Interrupt()
	assert.True(t, h.WasInterrupted())
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("Reconciliation interrupted!")))
	assert.Contains(t, out.String(), "Run the same import again to resume.")

	stop()
	assert.Error(t, ctx.Err(), "stop cancels the context")
}

func TestNewInterruptHandler_DefaultsWriter(t *testing.T) {
	assert.NotNil(t, NewInterruptHandler(nil).writer)
}
