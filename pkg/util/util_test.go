package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{".wav", ".mp3"}, SplitList(" .wav, .mp3,,.wav ", ","))
	assert.Empty(t, SplitList("", ","))
}

func TestServiceURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:5520", ServiceURL("127.0.0.1:5520"))
	assert.Equal(t, "http://[::1]:80", ServiceURL("[::1]:80"))
	assert.Equal(t, "http://localhost", ServiceURL("localhost"))
	assert.NotContains(t, ServiceURL("0.0.0.0:5520"), "0.0.0.0")
	assert.Contains(t, ServiceURL(":5520"), ":5520")
}
