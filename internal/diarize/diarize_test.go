package diarize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    []Turn
	}{
		{
			name: "empty",
		},
		{
			name:    "single entry",
			entries: []Entry{{Start: 1.5, End: 3.25, Speaker: "SPEAKER_07"}},
			want:    []Turn{{Start: 1.5, End: 3.25, Speaker: "SPEAKER_07"}},
		},
		{
			name: "merges runs",
			entries: []Entry{
				{0, 1, "A"}, {1, 2, "A"}, {2, 3, "B"}, {3, 4, "B"}, {4, 5, "B"},
			},
			want: []Turn{{0, 2, "A"}, {2, 5, "B"}},
		},
		{
			name:    "last entry changes speaker",
			entries: []Entry{{0, 1, "A"}, {1, 2, "A"}, {2, 3, "B"}},
			want:    []Turn{{0, 2, "A"}, {2, 3, "B"}},
		},
		{
			name:    "alternating",
			entries: []Entry{{0, 1, "A"}, {1, 2, "B"}, {2, 3, "A"}},
			want:    []Turn{{0, 1, "A"}, {1, 2, "B"}, {2, 3, "A"}},
		},
		{
			name:    "one speaker throughout",
			entries: []Entry{{0, 1, "A"}, {1.5, 2, "A"}, {2.5, 9, "A"}},
			want:    []Turn{{0, 9, "A"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.entries)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Turns)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	first := Normalize([]Entry{{0, 1, "A"}, {1, 2, "A"}, {2, 3, "B"}, {3, 4, "C"}, {4, 6, "C"}})

	entries := make([]Entry, len(first.Turns))
	for i, turn := range first.Turns {
		entries[i] = Entry{Start: turn.Start, End: turn.End, Speaker: turn.Speaker}
	}
	assert.Equal(t, first.Turns, Normalize(entries).Turns)
}

func TestNormalizeNoAdjacentDuplicates(t *testing.T) {
	res := Normalize([]Entry{{0, 1, "A"}, {1, 2, "B"}, {2, 3, "B"}, {3, 4, "A"}, {4, 5, "A"}, {5, 6, "B"}})
	for i := 1; i < len(res.Turns); i++ {
		assert.NotEqual(t, res.Turns[i-1].Speaker, res.Turns[i].Speaker)
		assert.LessOrEqual(t, res.Turns[i-1].End, res.Turns[i].Start)
	}
	assert.Equal(t, []string{"A", "B"}, res.Speakers())
}

func TestResultJSON(t *testing.T) {
	res := Normalize([]Entry{{0, 1, "A"}, {1, 2.5, "B"}})
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"speakers":["A","B"],"segments":[[0,1],[1,2.5]]}`, string(data))

	var back Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, res.Turns, back.Turns)

	require.Error(t, json.Unmarshal([]byte(`{"speakers":["A"],"segments":[]}`), &back))
}
