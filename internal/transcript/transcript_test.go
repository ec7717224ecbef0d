package transcript

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/scribe/internal/errors"
)

func sample() *Transcript {
	return New([]Entry{
		{Speaker: "SPEAKER_01", Start: 0, End: 3.5, Text: "Hello."},
		{Speaker: "SPEAKER_00", Start: 3.5, End: 65, Text: "Hi, how are you?"},
		{Speaker: "SPEAKER_01", Start: 65, End: 3725.9, Text: "Fine."},
	})
}

func TestString(t *testing.T) {
	want := "SPEAKER_01 (00:00:00 ; 00:00:03):\tHello.\n" +
		"SPEAKER_00 (00:00:03 ; 00:01:05):\tHi, how are you?\n" +
		"SPEAKER_01 (00:01:05 ; 01:02:05):\tFine.\n"
	assert.Equal(t, want, sample().String())
}

func TestAnnotate(t *testing.T) {
	t.Run("positional names follow sorted ids", func(t *testing.T) {
		tr := sample()
		require.NoError(t, tr.Annotate([]string{"Alice", "Bob"}, nil))
		assert.Equal(t, map[string]string{"SPEAKER_00": "Alice", "SPEAKER_01": "Bob"}, tr.Annotation())
		assert.Contains(t, tr.String(), "Alice (00:00:03 ; 00:01:05)")
		assert.NotContains(t, tr.String(), "SPEAKER_")
	})

	t.Run("count mismatch", func(t *testing.T) {
		tr := sample()
		err := tr.Annotate([]string{"A", "B", "C"}, nil)
		assert.True(t, errors.Is(err, errors.ErrCountMismatch))
		assert.Empty(t, tr.Annotation())
	})

	t.Run("unknown speaker", func(t *testing.T) {
		tr := sample()
		require.NoError(t, tr.Annotate([]string{"Alice", "Bob"}, nil))
		err := tr.Annotate(nil, map[string]string{"SPEAKER_00": "Carol", "SPEAKER_09": "X"})
		assert.True(t, errors.Is(err, errors.ErrUnknownSpeaker))
		// previous annotation untouched
		assert.Equal(t, "Alice", tr.Annotation()["SPEAKER_00"])
	})

	t.Run("mapping overrides positional", func(t *testing.T) {
		tr := sample()
		require.NoError(t, tr.Annotate([]string{"Alice", "Bob"}, map[string]string{"SPEAKER_01": "Robert"}))
		assert.Equal(t, map[string]string{"SPEAKER_00": "Alice", "SPEAKER_01": "Robert"}, tr.Annotation())
	})

	t.Run("partial mapping keeps raw ids", func(t *testing.T) {
		tr := sample()
		require.NoError(t, tr.Annotate(nil, map[string]string{"SPEAKER_00": "Alice"}))
		assert.Contains(t, tr.String(), "SPEAKER_01 (00:00:00")
		assert.Contains(t, tr.String(), "Alice (00:00:03")
	})
}

func TestParseNames(t *testing.T) {
	assert.Equal(t, []string{"Alice", "Bob"}, ParseNames(" Alice, ,Bob "))
	assert.Nil(t, ParseNames(""))
}

func TestJSON(t *testing.T) {
	tr := sample()
	require.NoError(t, tr.Annotate([]string{"Alice", "Bob"}, nil))

	data, err := tr.JSON(true)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n   \"0\": {")
	assert.JSONEq(t, `{
		"0": {"speakers": "Bob", "segments": [0, 3.5], "text": "Hello."},
		"1": {"speakers": "Alice", "segments": [3.5, 65], "text": "Hi, how are you?"},
		"2": {"speakers": "Bob", "segments": [65, 3725.9], "text": "Fine."}
	}`, string(data))

	raw, err := json.Marshal(tr)
	require.NoError(t, err)
	back, err := FromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, sample().Entries(), back.Entries())
	assert.Equal(t, []string{"SPEAKER_00", "SPEAKER_01"}, back.Speakers())

	_, err = FromJSON([]byte(`{"0": {}, "2": {}}`))
	require.Error(t, err)
	_, err = FromJSON([]byte(`{"first": {}}`))
	require.Error(t, err)
}

func TestHTML(t *testing.T) {
	tr := New([]Entry{{Speaker: "A", Start: 0, End: 1, Text: "x < y"}})
	assert.Equal(t,
		"<html><body><p>A (00:00:00 ; 00:00:01):&nbsp;&nbsp;&nbsp;&nbsp;x &lt; y<br></p></body></html>",
		tr.HTML())
}

func TestTex(t *testing.T) {
	tr := sample()
	want := "\\begin{drama}" +
		"\n\t\\Character{a}{a}" +
		"\n\t\\Character{b}{b}" +
		"\n\\bspeaks:\nHello." +
		"\n\\aspeaks:\nHi, how are you?" +
		"\n\\bspeaks:\nFine." +
		"\n\\end{drama}"
	assert.Equal(t, want, tr.Tex())
	// rendering does not annotate
	assert.Empty(t, tr.Annotation())

	require.NoError(t, tr.Annotate([]string{"Alice", "Bob"}, nil))
	assert.Contains(t, tr.Tex(), "\\Character{Alice}{Alice}")
	assert.Contains(t, tr.Tex(), "\\Bobspeaks:\nFine.")

	assert.Equal(t, "aa", letterName(26))
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	tr := sample()
	for _, ext := range []string{".txt", ".json", ".md", ".html", ".tex"} {
		path := filepath.Join(dir, "out"+ext)
		require.NoError(t, tr.Save(path), ext)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}

	md, _ := os.ReadFile(filepath.Join(dir, "out.md"))
	assert.Equal(t, tr.HTML(), string(md))

	err := tr.Save(filepath.Join(dir, "out.pdf"))
	assert.True(t, errors.Is(err, errors.ErrUnknownFormat))
	_, statErr := os.Stat(filepath.Join(dir, "out.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCheckFormat(t *testing.T) {
	for in, want := range map[string]string{"txt": "txt", ".JSON": "json", " md ": "md", "Tex": "tex"} {
		got, err := CheckFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "pdf", ".docx"} {
		_, err := CheckFormat(in)
		assert.True(t, errors.Is(err, errors.ErrUnknownFormat), in)
	}
}
