package stats

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/broadinstitute/picard-sub013/internal/variant"
)

// WorkItem holds a decoded record ready for summarizing. Records read with a
// shared genotype arena must not be sent here; use a per-record arena.
type WorkItem struct {
	Seq    int
	Record *variant.Context
}

// WorkResult holds the summary of a single record.
type WorkResult struct {
	Seq     int
	Record  *variant.Context
	Summary *Summary
	Err     error
}

// ParallelSummarize summarizes work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func (s *Summarizer) ParallelSummarize(items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				sum, err := s.Summarize(item.Record)
				if err != nil {
					s.logger.Warn("failed to summarize record",
						zap.Int("seq", item.Seq),
						zap.Error(err))
				}
				results <- WorkResult{
					Seq:     item.Seq,
					Record:  item.Record,
					Summary: sum,
					Err:     err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// Totals accumulates per-file counts.
type Totals struct {
	Records  int
	SNVs     int
	Indels   int
	Filtered int
	HomRef   int
	Het      int
	HomVar   int
	NoCall   int
	Mixed    int
}

// Add folds one record summary into the totals.
func (t *Totals) Add(s *Summary) {
	t.Records++
	if s.SNV {
		t.SNVs++
	}
	if s.Indel {
		t.Indels++
	}
	if s.Filtered {
		t.Filtered++
	}
	t.HomRef += s.HomRef
	t.Het += s.Het
	t.HomVar += s.HomVar
	t.NoCall += s.NoCall
	t.Mixed += s.Mixed
}
