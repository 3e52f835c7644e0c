package pipeline

// Partition splits keys into n contiguous chunks in order, sizes differing by
// at most one. The first len(keys)%n chunks carry the extra element. The
// result is deterministic for a given input, so re-running an interrupted run
// assigns every worker the same slice of the remaining backlog.
func Partition(keys []string, n int) [][]string {
	if n <= 0 {
		return nil
	}

	chunks := make([][]string, n)
	base := len(keys) / n
	extra := len(keys) % n

	offset := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks[i] = keys[offset : offset+size]
		offset += size
	}
	return chunks
}
