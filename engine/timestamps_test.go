package engine_test

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephysio/kwikstore/engine"
)

// feed delivers chunks to a fresh buffer as a host would: the timestamp of
// each chunk is start plus the samples delivered so far.
func feed(interval int, start int64, chunks []int) (*engine.TimestampBuffer, []int64) {
	b := engine.NewTimestampBuffer(interval)
	var all []int64
	pos := start
	for _, n := range chunks {
		b.Append(pos, n)
		all = append(all, b.Pending()...)
		b.Clear()
		pos += int64(n)
	}
	return b, all
}

func expectedMarks(interval int, start int64, total int) []int64 {
	var marks []int64
	for i := 0; i < total; i += interval {
		marks = append(marks, start+int64(i))
	}
	return marks
}

func sum(chunks []int) int {
	total := 0
	for _, n := range chunks {
		total += n
	}
	return total
}

func TestTimestampBufferPartitions(t *testing.T) {
	t.Parallel()
	const interval = 1024
	oneAtATime := make([]int, 3000)
	for i := range oneAtATime {
		oneAtATime[i] = 1
	}
	tests := map[string][]int{
		"single buffer":              {5000},
		"exact multiples":            {1024, 1024, 2048},
		"smaller than interval":      {100, 200, 300, 400, 500, 600},
		"spanning several intervals": {3000, 7, 4100, 1},
		"one sample at a time":       oneAtATime,
		"boundary on last sample":    {1023, 1, 1023, 1},
		"empty chunks are harmless":  {0, 512, 0, 600, 0},
	}
	for name, chunks := range tests {
		chunks := chunks
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			const start = int64(777)
			b, got := feed(interval, start, chunks)
			want := expectedMarks(interval, start, sum(chunks))
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("timestamps mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, sum(chunks)%interval, b.Offset())
		})
	}
}

func TestTimestampBufferRandomPartitions(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		interval := 1 + rng.Intn(2048)
		chunks := make([]int, 1+rng.Intn(40))
		for i := range chunks {
			chunks[i] = rng.Intn(3 * interval)
		}
		_, got := feed(interval, 0, chunks)
		require.Equal(t, expectedMarks(interval, 0, sum(chunks)), got, "interval %d chunks %v", interval, chunks)
		for i := 1; i < len(got); i++ {
			require.Equal(t, int64(interval), got[i]-got[i-1])
		}
	}
}

func TestTimestampBufferChunkExample(t *testing.T) {
	t.Parallel()
	b := engine.NewTimestampBuffer(1024)

	b.Append(0, 500)
	assert.Equal(t, []int64{0}, b.Pending())
	assert.Equal(t, 500, b.Offset())

	b.Append(500, 500)
	assert.Equal(t, []int64{0}, b.Pending())
	assert.Equal(t, 1000, b.Offset())

	// the 1024th sample closes the interval exactly, nothing is emitted
	// inside this chunk and the carried offset wraps to zero
	b.Append(1000, 24)
	assert.Equal(t, []int64{0}, b.Pending())
	assert.Equal(t, 0, b.Offset())

	b.Append(1024, 1)
	assert.Equal(t, []int64{0, 1024}, b.Pending())
	last, ok := b.Last()
	assert.True(t, ok)
	assert.Equal(t, int64(1024), last)
}

func TestTimestampBufferAlignsToNextBoundary(t *testing.T) {
	t.Parallel()
	b := engine.NewTimestampBuffer(100)
	assert.Equal(t, 1, b.Append(1000, 30))
	// offset 30: next boundary is 70 samples into this buffer
	assert.Equal(t, 2, b.Append(1030, 171))
	assert.Equal(t, []int64{1000, 1100, 1200}, b.Pending())
	assert.Equal(t, 1, b.Offset())

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 1, b.Offset())
}

func TestTimestampBufferDefaultInterval(t *testing.T) {
	t.Parallel()
	b := engine.NewTimestampBuffer(0)
	assert.Equal(t, engine.DefaultTimestampInterval, b.Interval())
	_, ok := b.Last()
	assert.False(t, ok)
	assert.Equal(t, 0, b.Append(5, -3))
}
