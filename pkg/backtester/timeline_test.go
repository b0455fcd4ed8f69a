package backtester

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineWalksInOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	timestamps := []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 2)}
	tl, err := NewTimeline(timestamps)
	require.NoError(t, err)

	assert.Equal(t, 3, tl.Len())
	assert.True(t, tl.HasNext())
	assert.Equal(t, timestamps[0], tl.CurrentTimestamp())

	next, ok := tl.PeekNext()
	require.True(t, ok)
	assert.Equal(t, timestamps[1], next)

	tl.Advance()
	tl.Advance()
	assert.True(t, tl.HasNext())
	_, ok = tl.PeekNext()
	assert.False(t, ok)

	tl.Advance()
	assert.False(t, tl.HasNext())
}

func TestTimelineResetIsIdempotent(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tl, err := NewTimeline([]time.Time{start, start.AddDate(0, 0, 1)})
	require.NoError(t, err)

	tl.Advance()
	tl.Reset()
	assert.Equal(t, 0, tl.CurrentIndex())
	tl.Reset()
	assert.Equal(t, 0, tl.CurrentIndex())
}

func TestNewTimelineRejectsNonMonotonicTimestamps(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewTimeline([]time.Time{start, start})
	require.Error(t, err)
}
