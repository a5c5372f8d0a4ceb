package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardEmpty(t *testing.T) {
	var b Board
	_, ok := b.Latest()
	assert.False(t, ok)
}

func TestBoardDiscardsStaleResponse(t *testing.T) {
	var b Board
	first := b.Begin()
	second := b.Begin()
	require.Greater(t, second, first)

	assert.True(t, b.Apply(second, Shown{Result: Result{PredictedCount: 30}, StopIndex: 4, At: time.Now()}))
	assert.False(t, b.Apply(first, Shown{Result: Result{PredictedCount: 12}, StopIndex: 2}))

	got, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 30, got.PredictedCount)
	assert.Equal(t, 4, got.StopIndex)
}

func TestBoardInOrderResponses(t *testing.T) {
	var b Board
	first := b.Begin()
	assert.True(t, b.Apply(first, Shown{StopIndex: 1}))
	second := b.Begin()
	assert.True(t, b.Apply(second, Shown{StopIndex: 2}))

	got, _ := b.Latest()
	assert.Equal(t, 2, got.StopIndex)
}
