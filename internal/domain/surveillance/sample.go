package surveillance

import "math/rand/v2"

// SampleRequest is the body of a sampled read.
type SampleRequest struct {
	BatchSize       int     `json:"batch_size"`
	PreviousIndexes []int64 `json:"previous_indexes"`
}

// SampleResult is the response of a sampled read.
type SampleResult struct {
	Data                RecordSet `json:"data"`
	OriginalTableLength int       `json:"original_table_length"`
	NumberOfSamples     int       `json:"number_of_samples"`
	ReturnedIndexes     []int64   `json:"returned_indexes"`
	Status              int       `json:"status"`
}

// drawSample shuffles the ids not yet seen and keeps at most size of them.
func drawSample(rng *rand.Rand, ids, previous []int64, size int) []int64 {
	seen := make(map[int64]struct{}, len(previous))
	for _, id := range previous {
		seen[id] = struct{}{}
	}
	pool := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			pool = append(pool, id)
		}
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if size < len(pool) {
		pool = pool[:size]
	}
	return pool
}

// inOrder reorders set to follow ids. Ids without a row are skipped.
func inOrder(set RecordSet, ids []int64) RecordSet {
	byID := make(map[int64]Record, len(set))
	for _, r := range set {
		byID[r.ID()] = r
	}
	out := make(RecordSet, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
