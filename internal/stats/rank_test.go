package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scored struct {
	id    int
	score float64
}

func byScore(s scored) float64 { return s.score }

func ids(items []scored) []int {
	out := make([]int, 0, len(items))
	for _, it := range items {
		out = append(out, it.id)
	}
	return out
}

func TestTopNKeepsInputOrderOnTies(t *testing.T) {
	items := []scored{{1, 90}, {2, 90}, {3, 80}}
	got, err := TopN(items, byScore, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids(got))

	again, err := TopN(got, byScore, 2)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestTopN(t *testing.T) {
	items := []scored{{1, 10}, {2, 50}, {3, 30}, {4, 50}}

	got, err := TopN(items, byScore, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 3, 1}, ids(got))
	assert.Equal(t, []int{1, 2, 3, 4}, ids(items), "input must not be reordered")

	got, err = TopN(items, byScore, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = TopN([]scored(nil), byScore, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = TopN(items, byScore, -1)
	assert.Error(t, err)
}
