package noop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiarizer(t *testing.T) {
	segs, err := Diarizer{}.Diarize(context.Background(), "/any.wav")
	assert.NoError(t, err)
	assert.Empty(t, segs)
	assert.Equal(t, "none", Diarizer{}.Name())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Diarizer{}.Diarize(ctx, "/any.wav")
	assert.ErrorIs(t, err, context.Canceled)
}
