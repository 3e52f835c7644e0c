package pipeline

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("https://q/%d", i)
	}
	return keys
}

func TestPartitionEvenSplit(t *testing.T) {
	chunks := Partition(makeKeys(6), 3)
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.Len(t, chunk, 2)
	}
}

func TestPartitionRemainderGoesToFirstChunks(t *testing.T) {
	chunks := Partition(makeKeys(7), 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 2)
	assert.Len(t, chunks[2], 2)
}

func TestPartitionFewerKeysThanWorkers(t *testing.T) {
	chunks := Partition(makeKeys(2), 5)
	require.Len(t, chunks, 5)
	assert.Len(t, chunks[0], 1)
	assert.Len(t, chunks[1], 1)
	for i := 2; i < 5; i++ {
		assert.Empty(t, chunks[i])
	}
}

func TestPartitionEmptyInput(t *testing.T) {
	chunks := Partition(nil, 3)
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.Empty(t, chunk)
	}
}

func TestPartitionSingleWorker(t *testing.T) {
	keys := makeKeys(4)
	chunks := Partition(keys, 1)
	require.Len(t, chunks, 1)
	assert.Equal(t, keys, chunks[0])
}

func TestPartitionInvalidWorkerCount(t *testing.T) {
	assert.Nil(t, Partition(makeKeys(3), 0))
	assert.Nil(t, Partition(makeKeys(3), -1))
}

func TestPartitionPreservesOrderAndCoverage(t *testing.T) {
	keys := makeKeys(11)
	chunks := Partition(keys, 4)

	var flattened []string
	for i, chunk := range chunks {
		if i > 0 {
			// Sizes never differ by more than one
			diff := len(chunks[i-1]) - len(chunk)
			assert.LessOrEqual(t, diff, 1)
			assert.GreaterOrEqual(t, diff, 0)
		}
		flattened = append(flattened, chunk...)
	}
	assert.Equal(t, keys, flattened)
}

func TestPartitionLargeRandomSets(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 20; trial++ {
		size := 500 + rng.Intn(5000)
		workers := 1 + rng.Intn(5)
		keys := makeKeys(size)

		chunks := Partition(keys, workers)
		require.Len(t, chunks, workers)

		var flattened []string
		minLen, maxLen := size, 0
		for _, chunk := range chunks {
			if len(chunk) < minLen {
				minLen = len(chunk)
			}
			if len(chunk) > maxLen {
				maxLen = len(chunk)
			}
			flattened = append(flattened, chunk...)
		}

		// Union covers the input in order, so the chunks are pairwise disjoint
		assert.Equal(t, keys, flattened, "size=%d workers=%d", size, workers)
		assert.LessOrEqual(t, maxLen-minLen, 1, "size=%d workers=%d", size, workers)
	}
}

func TestPartitionDeterministic(t *testing.T) {
	keys := makeKeys(9)
	first := Partition(keys, 4)
	second := Partition(keys, 4)
	assert.Equal(t, first, second)
}
