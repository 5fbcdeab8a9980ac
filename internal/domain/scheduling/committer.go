package scheduling

import (
	"context"
	"fmt"
)

// ConflictError reports a commit run in which the store rejected every
// candidate as overlapping.
type ConflictError struct {
	Rejected int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("all %d candidate slots rejected by overlap validation", e.Rejected)
}

// TransportError reports a chunk submission that failed as a whole. Chunks
// committed before it are preserved in the outcome; remaining chunks are
// never sent.
type TransportError struct {
	Chunk int
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("batch commit aborted at chunk %d: %v", e.Chunk, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedSlot pairs a rejected candidate with the store's reason.
type RejectedSlot struct {
	Slot   *Slot  `json:"slot"`
	Reason string `json:"reason"`
}

// CommitOutcome aggregates per-item results of a commit run. Processed
// counts every candidate whose chunk reached the store, accepted or not.
type CommitOutcome struct {
	Created   []*Slot        `json:"created"`
	Rejected  []RejectedSlot `json:"rejected"`
	Processed int            `json:"processed"`
	Total     int            `json:"total"`
}

// ProgressFunc is invoked after each chunk with monotonically increasing
// processed counts. May be nil.
type ProgressFunc func(processed, total int)

// BatchCommitter submits candidate slots to the store in bounded chunks.
// Chunks go out sequentially so progress is monotonic and the store's
// overlap validation sees every previously committed chunk.
type BatchCommitter struct {
	slots     SlotRepository
	chunkSize int
}

func NewBatchCommitter(slots SlotRepository, chunkSize int) *BatchCommitter {
	if chunkSize <= 0 {
		chunkSize = 50
	}
	return &BatchCommitter{slots: slots, chunkSize: chunkSize}
}

// Commit writes the candidates chunk by chunk. A chunk-level store failure
// aborts the remaining chunks and returns the outcome so far wrapped in a
// TransportError; committed chunks are not rolled back. When every candidate
// is rejected the run is a ConflictError. Partial success (some created,
// some rejected) returns a nil error with the rejections in the outcome.
func (bc *BatchCommitter) Commit(ctx context.Context, candidates []*Slot, onProgress ProgressFunc) (*CommitOutcome, error) {
	outcome := &CommitOutcome{Total: len(candidates)}

	for i := 0; i < len(candidates); i += bc.chunkSize {
		end := i + bc.chunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		chunk := candidates[i:end]

		results, err := bc.slots.CreateBatch(ctx, chunk)
		if err != nil {
			return outcome, &TransportError{Chunk: i / bc.chunkSize, Err: err}
		}

		for _, res := range results {
			if res.Created {
				outcome.Created = append(outcome.Created, res.Slot)
			} else {
				outcome.Rejected = append(outcome.Rejected, RejectedSlot{Slot: res.Slot, Reason: res.Reason})
			}
		}
		outcome.Processed += len(chunk)

		if onProgress != nil {
			onProgress(outcome.Processed, outcome.Total)
		}
	}

	if len(outcome.Created) == 0 && len(outcome.Rejected) > 0 {
		return outcome, &ConflictError{Rejected: len(outcome.Rejected)}
	}

	return outcome, nil
}
