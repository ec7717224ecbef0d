package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("spawn: %w", ModelLoad(fmt.Errorf("missing weights")))
	assert.True(t, Is(err, ErrModelLoad))
	assert.True(t, IsFatal(err))
	assert.Equal(t, "model load failed", KindOf(err))

	wrapped := Wrap(InvalidSource("/tmp/x", "is a directory"), "load audio", http.StatusBadRequest)
	assert.True(t, Is(wrapped, ErrInvalidSource))
	assert.False(t, IsFatal(wrapped))
}

func TestRestore(t *testing.T) {
	orig := UnknownSpeaker("SPEAKER_09", []string{"SPEAKER_00"})
	back := Restore(KindOf(orig), orig.Error())
	require.Error(t, back)
	assert.True(t, Is(back, ErrUnknownSpeaker))
	assert.Equal(t, orig.Error(), back.Error())

	var e *Error
	require.True(t, As(back, &e))
	assert.Equal(t, http.StatusBadRequest, e.Code)

	assert.Nil(t, Restore("", ""))
	plain := Restore("", "boom")
	assert.EqualError(t, plain, "boom")
	assert.Empty(t, KindOf(plain))
}
