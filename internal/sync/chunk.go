package sync

// DefaultChunkSize bounds the rows buffered per upsert for high-volume
// entities.
const DefaultChunkSize = 1000

// FlushFunc receives one bounded batch and returns the rows it wrote.
type FlushFunc func(Batch) (int, error)

// ChunkWriter buffers normalized rows into bounded batches so memory use
// stays constant no matter how many records a stream yields. Every row is
// flushed exactly once; Flush must be called after the last Add to drain
// the final partial chunk.
type ChunkWriter struct {
	table   string
	keys    []string
	size    int
	flush   FlushFunc
	buf     []Row
	written int
}

// NewChunkWriter creates a writer for one destination table. size <= 0
// falls back to DefaultChunkSize.
func NewChunkWriter(table string, keys []string, size int, flush FlushFunc) *ChunkWriter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &ChunkWriter{
		table: table,
		keys:  keys,
		size:  size,
		flush: flush,
		buf:   make([]Row, 0, size),
	}
}

// Add buffers one row, flushing when the buffer reaches the chunk size.
func (w *ChunkWriter) Add(row Row) error {
	w.buf = append(w.buf, row)
	if len(w.buf) >= w.size {
		return w.drain()
	}
	return nil
}

// Flush drains any buffered rows. A writer that never saw a row flushes
// nothing.
func (w *ChunkWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	return w.drain()
}

// Written returns the total rows flushed so far.
func (w *ChunkWriter) Written() int {
	return w.written
}

func (w *ChunkWriter) drain() error {
	batch := Batch{Table: w.table, Keys: w.keys, Rows: w.buf}
	n, err := w.flush(batch)
	w.written += n
	if err != nil {
		return err
	}
	w.buf = make([]Row, 0, w.size)
	return nil
}
