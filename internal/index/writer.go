package index

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/bd-law-agent/backend/pkg/logger"
)

type jobKind int

const (
	jobAdd jobKind = iota
	jobUpdate
)

type job struct {
	kind       jobKind
	docs       []Document
	identifier string
	patch      map[string]string
}

// Writer is the single-writer queue in front of an Index. All mutations flow
// through one worker goroutine so on-disk saves never race; searches go to
// the Index directly and run concurrently with the drain.
type Writer struct {
	idx  *Index
	jobs chan job
	wg   sync.WaitGroup
	once sync.Once
}

func NewWriter(idx *Index, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = 64
	}

	w := &Writer{
		idx:  idx,
		jobs: make(chan job, queueSize),
	}

	w.wg.Add(1)
	go w.drain()

	return w
}

func (w *Writer) drain() {
	defer w.wg.Done()

	for j := range w.jobs {
		switch j.kind {
		case jobAdd:
			if err := w.idx.Add(context.Background(), j.docs); err != nil {
				logger.Error("Index add failed", zap.Error(err), zap.Int("documents", len(j.docs)))
			}
		case jobUpdate:
			if _, err := w.idx.Update(j.identifier, j.patch); err != nil {
				logger.Error("Index update failed", zap.Error(err), zap.String("identifier", j.identifier))
			}
		}
	}
}

// EnqueueAdd schedules documents for indexing. Blocks only when the queue is
// full, which applies backpressure to ingestion rather than dropping work.
func (w *Writer) EnqueueAdd(docs []Document) {
	w.jobs <- job{kind: jobAdd, docs: docs}
}

// EnqueueUpdate schedules a metadata patch for the given source_path.
func (w *Writer) EnqueueUpdate(identifier string, patch map[string]string) {
	w.jobs <- job{kind: jobUpdate, identifier: identifier, patch: patch}
}

// Close stops accepting work and waits for the queue to drain.
func (w *Writer) Close() {
	w.once.Do(func() {
		close(w.jobs)
	})
	w.wg.Wait()
}
