package store

import (
	"context"
	"errors"
)

// MaxBatchOps is the hard cap on point mutations in one atomic commit.
const MaxBatchOps = 500

// ErrBatchTooLarge is returned by Commit when a batch holds more mutations
// than MaxBatchOps.
var ErrBatchTooLarge = errors.New("batch exceeds operation cap")

// Batch accumulates point mutations for one atomic commit. Mutations added
// to a batch report execution errors at Commit, not at add time. A Batch is
// not safe for concurrent use and must not be reused after Commit.
type Batch interface {
	// Len reports the number of mutations added so far.
	Len() int
	Commit(ctx context.Context) error
}

// BatchWriter is the one place batch-cap logic lives. Loops that write many
// mutations call Ready before each write; when the active batch has reached
// the cap it is committed and a fresh one opened. Flush commits whatever
// remains and is a no-op at zero pending mutations.
//
// Mutations split across writer-issued batches become visible incrementally
// and are not mutually atomic. A BatchWriter is not safe for concurrent use;
// parallel loops each take their own writer.
type BatchWriter struct {
	st    Store
	limit int
	cur   Batch
}

// NewBatchWriter returns a writer capped at MaxBatchOps.
func NewBatchWriter(st Store) *BatchWriter {
	return &BatchWriter{st: st, limit: MaxBatchOps}
}

// NewBatchWriterWithLimit returns a writer with a custom cap, used by tests
// to force rollover on small batches.
func NewBatchWriterWithLimit(st Store, limit int) *BatchWriter {
	if limit <= 0 {
		limit = MaxBatchOps
	}
	return &BatchWriter{st: st, limit: limit}
}

// Ready returns the batch to append the next mutation to, committing a full
// one first.
func (w *BatchWriter) Ready(ctx context.Context) (Batch, error) {
	if w.cur == nil {
		w.cur = w.st.NewBatch()
	}
	if w.cur.Len() >= w.limit {
		if err := w.cur.Commit(ctx); err != nil {
			return nil, err
		}
		w.cur = w.st.NewBatch()
	}
	return w.cur, nil
}

// Flush commits the remaining mutations, if any.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if w.cur == nil || w.cur.Len() == 0 {
		return nil
	}
	err := w.cur.Commit(ctx)
	w.cur = nil
	return err
}

// Pending reports the mutation count awaiting commit.
func (w *BatchWriter) Pending() int {
	if w.cur == nil {
		return 0
	}
	return w.cur.Len()
}
